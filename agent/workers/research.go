package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	llmx "github.com/hirelane/interview-agent/agent/llm"
)

// researchWorker verifies the candidate's public profiles. It consults the
// profile directory first, then the web search collaborator. A lookup failure
// is reported through the phase log, never as an execution error, so the
// supervisor can observe it and re-route instead of looping.
type researchWorker struct {
	search    contractx.SearchProvider
	directory contractx.ProfileDirectory
	runner    compose.Runnable[map[string]any, researchLLMOutput]
}

type researchLLMOutput struct {
	Message          string   `json:"message"`
	Summary          string   `json:"summary"`
	UnverifiedSkills []string `json:"unverified_skills,omitempty"`
}

func newResearchWorker(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	search contractx.SearchProvider,
	directory contractx.ProfileDirectory,
) (*researchWorker, error) {
	if search == nil {
		return nil, fmt.Errorf("%w: research worker requires a search provider", contractx.ErrValidation)
	}
	runner, err := llmx.CompileStructuredGraph[researchLLMOutput](ctx, chatModel, systemPrompt, "research.worker_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile research graph: %v", contractx.ErrModelInvoke, err)
	}
	return &researchWorker{
		search:    search,
		directory: directory,
		runner:    runner,
	}, nil
}

func (w *researchWorker) Execute(ctx context.Context, req contractx.WorkerRequest) (contractx.WorkerResponse, error) {
	if req.Session == nil {
		return contractx.WorkerResponse{}, fmt.Errorf("%w: research request has no session", contractx.ErrValidation)
	}

	candidate := strings.TrimSpace(req.Session.Candidate)
	if candidate == "" {
		candidate = "the candidate"
	}

	profile := w.lookupProfile(ctx, candidate, req.Session.SessionID)

	hits, err := w.search.SearchProfiles(ctx, profileQuery(candidate, req.UserMessage))
	if err != nil {
		log.Warn().Err(err).Str("session", req.Session.SessionID).Msg("profile search failed")
		return contractx.WorkerResponse{
			Message: fmt.Sprintf("I ran into trouble while looking up profiles for %s. We can retry, or you can share a direct link.", candidate),
			Updates: contractx.StateUpdates{
				PhaseLog: "lookup failed: " + err.Error(),
			},
		}, nil
	}

	if len(hits) == 0 {
		return contractx.WorkerResponse{
			Message: fmt.Sprintf("I could not find any public profiles for %s. A LinkedIn or GitHub link would help me verify your background.", candidate),
			Updates: contractx.StateUpdates{
				PhaseLog: "no profiles found for " + candidate,
			},
		}, nil
	}

	out, err := w.summarize(ctx, candidate, req.UserMessage, profile, hits)
	if err != nil {
		return contractx.WorkerResponse{}, err
	}

	return contractx.WorkerResponse{
		Message: out.Message,
		Updates: contractx.StateUpdates{
			PhaseLog:    verificationLog(len(hits), out),
			ReadyForKPI: true,
		},
	}, nil
}

func (w *researchWorker) lookupProfile(ctx context.Context, candidate, sessionID string) *contractx.CandidateProfile {
	if w.directory == nil {
		return nil
	}
	profile, err := w.directory.FindByName(ctx, candidate)
	if err != nil {
		if !errors.Is(err, contractx.ErrProfileNotFound) {
			// A directory outage is not fatal: web search still runs.
			log.Warn().Err(err).Str("session", sessionID).Msg("profile directory lookup failed")
		}
		return nil
	}
	return profile
}

func (w *researchWorker) summarize(
	ctx context.Context,
	candidate string,
	userMessage string,
	profile *contractx.CandidateProfile,
	hits []contractx.ProfileHit,
) (researchLLMOutput, error) {
	payload := map[string]any{
		"candidate":    candidate,
		"user_message": userMessage,
		"profile":      profile,
		"hits":         hits,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return researchLLMOutput{}, fmt.Errorf("%w: marshal research payload: %v", contractx.ErrValidation, err)
	}

	out, err := w.runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return researchLLMOutput{}, fmt.Errorf("%w: research summarize invoke: %v", contractx.ErrProvider, err)
	}

	out.Message = strings.TrimSpace(out.Message)
	if out.Message == "" {
		return researchLLMOutput{}, fmt.Errorf("%w: research message is empty", contractx.ErrSchemaViolation)
	}
	return out, nil
}

func profileQuery(candidate, userMessage string) string {
	query := candidate + " linkedin github profile"
	// When the user pasted a link, anchor the search on it.
	for _, tok := range strings.Fields(userMessage) {
		if strings.HasPrefix(tok, "http://") || strings.HasPrefix(tok, "https://") {
			query = candidate + " " + tok
			break
		}
	}
	return query
}

func verificationLog(hitCount int, out researchLLMOutput) string {
	logLine := fmt.Sprintf("verified %d sources", hitCount)
	if s := strings.TrimSpace(out.Summary); s != "" {
		logLine += ": " + s
	}
	if len(out.UnverifiedSkills) > 0 {
		logLine += " (unverified: " + strings.Join(out.UnverifiedSkills, ", ") + ")"
	}
	return logLine
}
