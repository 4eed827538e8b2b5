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

// feedbackWorker produces the final scored assessment, typically the last
// worker invoked before the session finishes.
type feedbackWorker struct {
	runner compose.Runnable[map[string]any, feedbackLLMOutput]
}

type feedbackLLMOutput struct {
	Message        string `json:"message"`
	Score          int    `json:"score"`
	Recommendation string `json:"recommendation"`
}

func newFeedbackWorker(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*feedbackWorker, error) {
	runner, err := llmx.CompileStructuredGraph[feedbackLLMOutput](ctx, chatModel, systemPrompt, "feedback.worker_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile feedback graph: %v", contractx.ErrModelInvoke, err)
	}
	return &feedbackWorker{runner: runner}, nil
}

func (w *feedbackWorker) Execute(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResponse, error) {
	st := req.Session
	if st == nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: feedback request has no session", contractx.ErrValidation)
	}

	payload := map[string]any{
		"candidate":  st.Candidate,
		"kpi_notes":  st.PhaseLog(statex.WorkerKPI),
		"transcript": tailTranscript(st, len(st.Messages)),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: marshal feedback payload: %v", contractx.ErrValidation, err)
	}

	out, err := w.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: feedback invoke: %v", contractx.ErrProvider, err)
	}

	message := strings.TrimSpace(out.Message)
	if message == "" {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: feedback assessment is empty", contractx.ErrSchemaViolation)
	}
	if out.Score < 0 || out.Score > 100 {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: feedback score=%d out of range", contractx.ErrSchemaViolation, out.Score)
	}

	recommendation := strings.TrimSpace(out.Recommendation)
	if recommendation == "" {
		recommendation = "undecided"
	}

	return contractx.WorkerResponse{
		Message: message,
		Updates: contractx.StateUpdates{
			PhaseLog: fmt.Sprintf("assessment delivered: score %d/100, recommendation %s", out.Score, recommendation),
		},
	}, nil
}
