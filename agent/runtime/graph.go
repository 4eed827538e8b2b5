package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	statex "github.com/hirelane/interview-agent/agent/state"
)

// turnState carries one cycle turn through the decide -> execute graph.
// Worker and routing failures are encoded into the state instead of being
// returned, so a single bad turn can never abort the graph run: the session
// loop owns all recovery.
type turnState struct {
	Session     *statex.ConversationState
	UserMessage string
	Stuck       bool
	Now         time.Time

	// Loop-prevention inputs
	LastInvoked statex.WorkerID
	Streak      int
	MaxStreak   int

	// Outputs
	Decision  contractx.Decision
	DecideErr error
	Stalled   bool
	Executed  bool
	Response  contractx.WorkerResponse
	WorkerErr error
}

const settleNode = "settle"

func workerNodeName(id statex.WorkerID) string {
	return "run_" + string(id)
}

// compileCycleTurnGraph builds the per-turn pipeline: the supervisor decides,
// a branch routes to exactly one worker node (or settles on await/finish/
// stalled routing), and the chosen worker executes under the configured
// timeout.
func compileCycleTurnGraph(
	ctx context.Context,
	registry contractx.Registry,
	workerTimeout time.Duration,
) (compose.Runnable[*turnState, *turnState], error) {
	graph := compose.NewGraph[*turnState, *turnState]()

	if err := graph.AddLambdaNode("supervisor_decide",
		compose.InvokableLambda(func(ctx context.Context, ts *turnState) (*turnState, error) {
			if ts == nil || ts.Session == nil {
				return nil, fmt.Errorf("%w: turn state is incomplete", contractx.ErrValidation)
			}
			decision, err := registry.Supervisor().Decide(ctx, contractx.DecisionRequest{
				Session: ts.Session,
				Stuck:   ts.Stuck,
				Now:     ts.Now,
			})
			if err != nil {
				ts.DecideErr = err
				return ts, nil
			}
			if err := decision.Validate(); err != nil {
				ts.DecideErr = fmt.Errorf("%w: action=%q worker=%q", contractx.ErrRouting, decision.Action, decision.Worker)
				return ts, nil
			}
			ts.Decision = decision
			return ts, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node supervisor_decide: %w", err)
	}

	for _, id := range statex.AllWorkers() {
		id := id
		if err := graph.AddLambdaNode(workerNodeName(id),
			compose.InvokableLambda(func(ctx context.Context, ts *turnState) (*turnState, error) {
				if ts == nil || ts.Session == nil {
					return nil, fmt.Errorf("%w: turn state is incomplete", contractx.ErrValidation)
				}
				worker, ok := contractx.WorkerFor(registry, id)
				if !ok || worker == nil {
					ts.DecideErr = fmt.Errorf("%w: worker=%q has no registry entry", contractx.ErrRouting, id)
					return ts, nil
				}
				ts.Executed = true
				ts.Response, ts.WorkerErr = executeWithTimeout(ctx, worker, id, contractx.WorkerRequest{
					UserMessage: ts.UserMessage,
					Session:     ts.Session,
					Now:         ts.Now,
				}, workerTimeout)
				return ts, nil
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", workerNodeName(id), err)
		}
	}

	if err := graph.AddLambdaNode(settleNode,
		compose.InvokableLambda(func(ctx context.Context, ts *turnState) (*turnState, error) {
			return ts, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node settle: %w", err)
	}

	targets := map[string]bool{settleNode: true}
	for _, id := range statex.AllWorkers() {
		targets[workerNodeName(id)] = true
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, ts *turnState) (string, error) {
			if ts == nil {
				return "", fmt.Errorf("%w: turn state is nil", contractx.ErrValidation)
			}
			if ts.DecideErr != nil || ts.Decision.Action != contractx.ActionInvoke {
				return settleNode, nil
			}
			// Loop prevention: block the invocation that would exceed the
			// consecutive-run budget and force a re-decision instead.
			if ts.Decision.Worker == ts.LastInvoked && ts.Streak >= ts.MaxStreak {
				ts.Stalled = true
				return settleNode, nil
			}
			return workerNodeName(ts.Decision.Worker), nil
		},
		targets,
	)

	if err := graph.AddEdge(compose.START, "supervisor_decide"); err != nil {
		return nil, fmt.Errorf("add edge start->decide: %w", err)
	}
	if err := graph.AddBranch("supervisor_decide", branch); err != nil {
		return nil, fmt.Errorf("add decide branch: %w", err)
	}
	for _, id := range statex.AllWorkers() {
		if err := graph.AddEdge(workerNodeName(id), compose.END); err != nil {
			return nil, fmt.Errorf("add edge %s->end: %w", workerNodeName(id), err)
		}
	}
	if err := graph.AddEdge(settleNode, compose.END); err != nil {
		return nil, fmt.Errorf("add edge settle->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("runtime.cycle_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile cycle turn graph: %w", err)
	}
	return runner, nil
}

func executeWithTimeout(
	ctx context.Context,
	worker contractx.Worker,
	id statex.WorkerID,
	req contractx.WorkerRequest,
	timeout time.Duration,
) (contractx.WorkerResponse, error) {
	wctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := worker.Execute(wctx, req)
	if err != nil {
		// Only the per-worker deadline maps to a timeout failure; a cancelled
		// parent context stays a cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return contractx.WorkerResponse{}, fmt.Errorf("%w: worker=%s exceeded %s", contractx.ErrTimeout, id, timeout)
		}
		return contractx.WorkerResponse{}, err
	}
	return resp, nil
}
