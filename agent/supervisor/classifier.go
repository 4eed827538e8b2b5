package supervisor

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

type llmClassifier struct {
	runner compose.Runnable[map[string]any, classifierLLMOutput]
}

type classifierLLMOutput struct {
	Action string `json:"action"`
	Worker string `json:"worker,omitempty"`
	Reason string `json:"reason,omitempty"`
	Say    string `json:"say,omitempty"`
}

// NewLLMClassifier builds the learned routing policy on a structured-output
// chat model. The surrounding Supervisor still owns every precondition.
func NewLLMClassifier(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (Classifier, error) {
	runner, err := llmx.CompileStructuredGraph[classifierLLMOutput](ctx, chatModel, systemPrompt, "supervisor.classifier_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile classifier graph: %v", contractx.ErrModelInvoke, err)
	}
	return &llmClassifier{runner: runner}, nil
}

func (c *llmClassifier) Classify(ctx context.Context, req contractx.DecisionRequest) (contractx.Decision, error) {
	payload := map[string]any{
		"stuck":   req.Stuck,
		"session": summarizeSession(req.Session),
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	out, err := c.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}

	return contractx.Decision{
		Action: contractx.Action(strings.TrimSpace(out.Action)),
		Worker: statex.WorkerID(strings.TrimSpace(out.Worker)),
		Reason: strings.TrimSpace(out.Reason),
		Say:    strings.TrimSpace(out.Say),
	}, nil
}

func summarizeSession(st *statex.ConversationState) map[string]any {
	if st == nil {
		return map[string]any{}
	}

	transcript := make([]map[string]any, 0, len(st.Messages))
	for _, m := range st.Messages {
		entry := map[string]any{
			"role":    m.Role,
			"content": m.Content,
		}
		if m.Worker != "" {
			entry["worker"] = m.Worker
		}
		transcript = append(transcript, entry)
	}

	return map[string]any{
		"candidate":       st.Candidate,
		"last_worker":     st.LastWorker,
		"phase_logs":      st.PhaseLogs,
		"ready_for_kpi":   st.ReadyForKPI,
		"covered_topics":  st.CoveredTopics,
		"questions_asked": st.QuestionsAsked,
		"messages":        transcript,
	}
}
