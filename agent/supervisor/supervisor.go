package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	statex "github.com/hirelane/interview-agent/agent/state"
)

// Classifier is the optional learned routing policy consulted once the
// deterministic gates are satisfied. Its output is validated against the
// action/worker enums before it is allowed to steer the runtime.
type Classifier interface {
	Classify(ctx context.Context, req contractx.DecisionRequest) (contractx.Decision, error)
}

type Config struct {
	// MaxQuestions caps the interview phase before feedback is forced.
	MaxQuestions int
}

const defaultMaxQuestions = 8

// Supervisor is the single decision point of the session. Worker
// preconditions are enforced here, ahead of any model call, so that an
// out-of-domain classifier answer can never violate them.
type Supervisor struct {
	classifier   Classifier
	maxQuestions int
}

func New(classifier Classifier, cfg Config) *Supervisor {
	maxQuestions := cfg.MaxQuestions
	if maxQuestions <= 0 {
		maxQuestions = defaultMaxQuestions
	}
	return &Supervisor{
		classifier:   classifier,
		maxQuestions: maxQuestions,
	}
}

func (s *Supervisor) Decide(ctx context.Context, req contractx.DecisionRequest) (contractx.Decision, error) {
	st := req.Session
	if st == nil {
		return contractx.Decision{}, fmt.Errorf("%w: decision request has no session", contractx.ErrValidation)
	}

	// Closure: every phase reported and the user signalled they are done.
	if st.AllPhasesLogged() && isClosureMessage(st.LastUserMessage()) {
		return contractx.Decision{
			Action: contractx.ActionFinish,
			Reason: "all phases complete and the user signalled closure",
		}, nil
	}

	if d, ok := s.researchGate(st, req.Stuck); ok {
		return d, nil
	}

	if st.ReadyForKPI && st.PhaseLog(statex.WorkerKPI) == "" {
		return contractx.Decision{
			Action: contractx.ActionInvoke,
			Worker: statex.WorkerKPI,
			Reason: "profiles verified, benchmarks not yet defined",
		}, nil
	}

	if s.classifier != nil {
		d, err := s.classifier.Classify(ctx, req)
		switch {
		case err != nil:
			// A provider failure must not stall routing; fall back to rules.
			log.Warn().Err(err).Str("session", st.SessionID).Msg("routing classifier failed, using rule policy")
		default:
			if err := d.Validate(); err != nil {
				return contractx.Decision{}, fmt.Errorf("%w: classifier action=%q worker=%q", contractx.ErrRouting, d.Action, d.Worker)
			}
			return s.clamp(st, req.Stuck, d), nil
		}
	}

	return s.rulePolicy(st, req.Stuck), nil
}

// researchGate owns the routing rules up to a successful research phase.
func (s *Supervisor) researchGate(st *statex.ConversationState, stuck bool) (contractx.Decision, bool) {
	researched := strings.TrimSpace(st.PhaseLog(statex.WorkerResearch)) != ""

	if !researched {
		if stuck {
			return contractx.Decision{
				Action: contractx.ActionAwaitUser,
				Reason: "research is stalling, asking the user for a pointer",
				Say:    "I'm having trouble locating your public profiles. Could you share a LinkedIn or GitHub link?",
			}, true
		}
		return contractx.Decision{
			Action: contractx.ActionInvoke,
			Worker: statex.WorkerResearch,
			Reason: "no research has run for this session yet",
		}, true
	}

	if st.ReadyForKPI {
		return contractx.Decision{}, false
	}

	// Research ran but verified nothing. Retry only on fresh user input,
	// otherwise ask for clarification instead of looping on research.
	if lastEntryIsUser(st) && !stuck {
		return contractx.Decision{
			Action: contractx.ActionInvoke,
			Worker: statex.WorkerResearch,
			Reason: "retrying research with the user's latest input",
		}, true
	}
	return contractx.Decision{
		Action: contractx.ActionAwaitUser,
		Reason: "research found no verifiable profiles",
		Say:    "I couldn't verify your profiles yet. A direct link to your LinkedIn or GitHub would help me continue.",
	}, true
}

// clamp applies the hard preconditions to a classifier decision.
func (s *Supervisor) clamp(st *statex.ConversationState, stuck bool, d contractx.Decision) contractx.Decision {
	if d.Action == contractx.ActionInvoke && d.Worker == statex.WorkerKPI && !st.ReadyForKPI {
		return contractx.Decision{
			Action: contractx.ActionInvoke,
			Worker: statex.WorkerResearch,
			Reason: "kpi requested before profiles were verified, rerouting to research",
		}
	}
	if stuck && d.Action == contractx.ActionInvoke && d.Worker == st.LastWorker {
		return s.rulePolicy(st, stuck)
	}
	return d
}

// rulePolicy is the deterministic mid-session routing used when no
// classifier is configured or the classifier is unavailable.
func (s *Supervisor) rulePolicy(st *statex.ConversationState, stuck bool) contractx.Decision {
	feedbackDone := strings.TrimSpace(st.PhaseLog(statex.WorkerFeedback)) != ""

	if lastEntryIsUser(st) {
		wantsFeedback := st.QuestionsAsked >= s.maxQuestions || wantsToFinish(st.LastUserMessage())
		if !feedbackDone && wantsFeedback && strings.TrimSpace(st.PhaseLog(statex.WorkerInterview)) != "" {
			if !(stuck && st.LastWorker == statex.WorkerFeedback) {
				return contractx.Decision{
					Action: contractx.ActionInvoke,
					Worker: statex.WorkerFeedback,
					Reason: "interview phase is over, producing the final assessment",
				}
			}
		}
		if !(stuck && st.LastWorker == statex.WorkerInterview) && !feedbackDone {
			return contractx.Decision{
				Action: contractx.ActionInvoke,
				Worker: statex.WorkerInterview,
				Reason: "continuing the technical questioning",
			}
		}
	}

	// The last transcript entry came from a worker (or every route is
	// exhausted): hand the turn to the user.
	return contractx.Decision{
		Action: contractx.ActionAwaitUser,
		Reason: "waiting for the candidate's next message",
	}
}

func lastEntryIsUser(st *statex.ConversationState) bool {
	if st == nil || len(st.Messages) == 0 {
		return false
	}
	return st.Messages[len(st.Messages)-1].Role == statex.RoleUser
}
