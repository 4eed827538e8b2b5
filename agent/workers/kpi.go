package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	llmx "github.com/hirelane/interview-agent/agent/llm"
	statex "github.com/hirelane/interview-agent/agent/state"
)

// kpiWorker defines the interview benchmarks. It refuses to run before the
// research worker has latched ReadyForKPI; this check is deliberately
// independent of the supervisor's own gating so a routing bug cannot violate
// the ordering invariant.
type kpiWorker struct {
	runner compose.Runnable[map[string]any, kpiLLMOutput]
}

type kpiLLMOutput struct {
	Message string    `json:"message"`
	KPIs    []kpiItem `json:"kpis"`
}

type kpiItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Benchmark   string `json:"benchmark"`
}

func newKPIWorker(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*kpiWorker, error) {
	runner, err := llmx.CompileStructuredGraph[kpiLLMOutput](ctx, chatModel, systemPrompt, "kpi.worker_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile kpi graph: %v", contractx.ErrModelInvoke, err)
	}
	return &kpiWorker{runner: runner}, nil
}

func (w *kpiWorker) Execute(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResponse, error) {
	if req.Session == nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: kpi request has no session", contractx.ErrValidation)
	}
	if !req.Session.ReadyForKPI {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: kpi requires verified profiles (ready_for_kpi=false)", contractx.ErrPrecondition)
	}

	payload := map[string]any{
		"candidate":      req.Session.Candidate,
		"user_message":   req.UserMessage,
		"research_notes": req.Session.PhaseLog(statex.WorkerResearch),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: marshal kpi payload: %v", contractx.ErrValidation, err)
	}

	out, err := w.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: kpi invoke: %v", contractx.ErrProvider, err)
	}

	message := strings.TrimSpace(out.Message)
	if message == "" {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: kpi message is empty", contractx.ErrSchemaViolation)
	}
	if len(out.KPIs) == 0 {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: kpi response defines no benchmarks", contractx.ErrSchemaViolation)
	}

	names := make([]string, 0, len(out.KPIs))
	for _, k := range out.KPIs {
		if n := strings.TrimSpace(k.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: kpi benchmarks have no names", contractx.ErrSchemaViolation)
	}

	return contractx.WorkerResponse{
		Message: message,
		Updates: contractx.StateUpdates{
			PhaseLog: fmt.Sprintf("defined %d benchmarks: %s", len(names), strings.Join(names, ", ")),
		},
	}, nil
}
