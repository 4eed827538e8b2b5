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

// transcriptTail bounds how much history the interviewer model sees.
const transcriptTail = 12

// interviewWorker asks one rigorous technical question per turn and tracks
// topic coverage. It never terminates the session itself.
type interviewWorker struct {
	runner compose.Runnable[map[string]any, interviewLLMOutput]
}

type interviewLLMOutput struct {
	Message  string `json:"message"`
	Topic    string `json:"topic"`
	MovingOn bool   `json:"moving_on"`
}

func newInterviewWorker(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*interviewWorker, error) {
	runner, err := llmx.CompileStructuredGraph[interviewLLMOutput](ctx, chatModel, systemPrompt, "interview.worker_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile interview graph: %v", contractx.ErrModelInvoke, err)
	}
	return &interviewWorker{runner: runner}, nil
}

func (w *interviewWorker) Execute(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResponse, error) {
	st := req.Session
	if st == nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: interview request has no session", contractx.ErrValidation)
	}

	payload := map[string]any{
		"candidate":       st.Candidate,
		"last_answer":     req.UserMessage,
		"covered_topics":  st.CoveredTopics,
		"questions_asked": st.QuestionsAsked,
		"research_notes":  st.PhaseLog(statex.WorkerResearch),
		"kpi_notes":       st.PhaseLog(statex.WorkerKPI),
		"transcript":      tailTranscript(st, transcriptTail),
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: marshal interview payload: %v", contractx.ErrValidation, err)
	}

	out, err := w.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: interview invoke: %v", contractx.ErrProvider, err)
	}

	message := strings.TrimSpace(out.Message)
	if message == "" {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: interview question is empty", contractx.ErrSchemaViolation)
	}

	topic := strings.TrimSpace(out.Topic)
	if topic == "" {
		topic = "general"
	}

	updates := contractx.StateUpdates{
		PhaseLog:   fmt.Sprintf("questioning on %s (%d questions asked)", topic, st.QuestionsAsked+1),
		AskedCount: st.QuestionsAsked + 1,
	}
	if out.MovingOn {
		updates.CoveredTopic = topic
	}

	return contractx.WorkerResponse{
		Message: message,
		Updates: updates,
	}, nil
}

func tailTranscript(st *statex.ConversationState, n int) []map[string]string {
	msgs := st.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		entry := map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		}
		if m.Worker != "" {
			entry["worker"] = string(m.Worker)
		}
		out = append(out, entry)
	}
	return out
}
