package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	statex "github.com/hirelane/interview-agent/agent/state"
)

const (
	cancelledMarker     = "Session cancelled by the user."
	stalledMarkerPrefix = "Routing stalled on "
	pauseNote           = "Let's pause here for a moment. Please go ahead whenever you're ready."
	closingApology      = "I'm sorry, I wasn't able to route this conversation any further. Let's wrap up here."
)

// maxInvalidRoutings is how many unusable supervisor decisions a single user
// message tolerates before the session is closed gracefully.
const maxInvalidRoutings = 2

// Session is one live interview conversation. All methods are safe for
// concurrent use; a per-session mutex serializes turns, so a Cancel issued
// during HandleMessage takes effect between turns, never mid-turn.
type Session struct {
	rt    *Runtime
	st    *statex.ConversationState
	phase Phase

	cancelAsked atomic.Bool

	mu sync.Mutex
}

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SessionID
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Status() statex.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Status
}

// Snapshot returns a deep copy of the conversation state; callers can never
// mutate the live record through it.
func (s *Session) Snapshot() (*statex.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Clone()
}

// Cancel closes the session between turns: it records a cancellation marker,
// marks the session cancelled, and persists the final snapshot.
func (s *Session) Cancel(ctx context.Context) error {
	s.cancelAsked.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFinished {
		return ErrSessionFinished
	}

	now := s.rt.now()
	if err := s.st.AppendSupervisor(cancelledMarker, now); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrRuntimeFault, err)
	}
	return s.finish(ctx, statex.StatusCancelled)
}

// HandleMessage appends the user message and drives supervisor/worker cycles
// until the session yields back to the user or finishes. It returns the reply
// to surface to the user.
//
// Worker failures are recoverable: they are folded into the state (synthetic
// phase log) and the supervisor re-decides. Only a runtime-level fault
// (corrupted state, a broken transcript) is fatal, marking the session failed.
func (s *Session) HandleMessage(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseFinished || s.st.Status.Terminal() {
		return "", ErrSessionFinished
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %v", contractx.ErrValidation, statex.ErrEmptyMessage)
	}

	now := s.rt.now()
	if err := s.st.AppendUser(text, now); err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrValidation, err)
	}
	s.phase = PhaseSupervisorDeciding

	var stuck bool
	var invalidRoutes int
	prevTranscript := len(s.st.Messages)

	for turn := 0; turn < s.rt.cfg.MaxTurnsPerMessage; turn++ {
		if s.cancelAsked.Load() {
			// Cancel grabbed the flag while we held the turn; let it win.
			break
		}
		if err := s.checkIntegrity(prevTranscript); err != nil {
			return "", s.fail(ctx, err)
		}
		prevTranscript = len(s.st.Messages)

		ts := &turnState{
			Session:     s.st,
			UserMessage: s.st.LastUserMessage(),
			Stuck:       stuck,
			Now:         s.rt.now(),
			LastInvoked: s.st.LastInvoked,
			Streak:      s.st.InvokeStreak,
			MaxStreak:   s.rt.cfg.MaxConsecutiveRuns,
		}

		out, err := s.rt.turn.Invoke(ctx, ts)
		if err != nil {
			// The graph itself only fails on machinery-level problems; worker
			// and routing failures come back inside the turn state.
			return "", s.fail(ctx, err)
		}

		if out.DecideErr != nil {
			invalidRoutes++
			log.Warn().
				Err(out.DecideErr).
				Str("session_id", s.st.SessionID).
				Int("invalid_routes", invalidRoutes).
				Msg("supervisor produced an unusable decision")
			if invalidRoutes >= maxInvalidRoutings {
				if err := s.st.AppendSupervisor(closingApology, s.rt.now()); err != nil {
					return "", s.fail(ctx, err)
				}
				if err := s.finish(ctx, statex.StatusCompleted); err != nil {
					return closingApology, err
				}
				return closingApology, nil
			}
			stuck = true
			continue
		}

		if out.Stalled {
			if stuck {
				// The forced re-decision stalled again; treat it like an
				// invalid routing so the session cannot spin.
				invalidRoutes++
				if invalidRoutes >= maxInvalidRoutings {
					if err := s.st.AppendSupervisor(closingApology, s.rt.now()); err != nil {
						return "", s.fail(ctx, err)
					}
					if err := s.finish(ctx, statex.StatusCompleted); err != nil {
						return closingApology, err
					}
					return closingApology, nil
				}
				continue
			}
			marker := stalledMarkerPrefix + string(out.Decision.Worker) + "; reconsidering."
			if err := s.st.AppendSupervisor(marker, s.rt.now()); err != nil {
				return "", s.fail(ctx, err)
			}
			stuck = true
			continue
		}

		switch out.Decision.Action {
		case contractx.ActionFinish:
			if say := strings.TrimSpace(out.Decision.Say); say != "" {
				if err := s.st.AppendSupervisor(say, s.rt.now()); err != nil {
					return "", s.fail(ctx, err)
				}
			}
			reply := s.st.LastReply()
			if err := s.finish(ctx, statex.StatusCompleted); err != nil {
				return reply, err
			}
			return reply, nil

		case contractx.ActionAwaitUser:
			if say := strings.TrimSpace(out.Decision.Say); say != "" {
				if err := s.st.AppendSupervisor(say, s.rt.now()); err != nil {
					return "", s.fail(ctx, err)
				}
			}
			s.yieldToUser(ctx)
			return s.st.LastReply(), nil

		case contractx.ActionInvoke:
			worker := out.Decision.Worker
			s.phase = PhaseWorkerExecuting
			s.trackInvocation(worker)
			stuck = false

			if out.WorkerErr != nil {
				log.Warn().
					Err(out.WorkerErr).
					Str("session_id", s.st.SessionID).
					Str("worker", string(worker)).
					Msg("worker execution failed; supervisor will re-decide")
				if err := s.st.SetPhaseLog(worker, fmt.Sprintf("failed: %v", out.WorkerErr), s.rt.now()); err != nil {
					return "", s.fail(ctx, err)
				}
				s.st.LastWorker = worker
				s.phase = PhaseSupervisorDeciding
				continue
			}

			if err := s.applyWorkerResult(worker, out.Response); err != nil {
				return "", s.fail(ctx, err)
			}
			s.phase = PhaseSupervisorDeciding

		default:
			// Validate upstream makes this unreachable.
			return "", s.fail(ctx, fmt.Errorf("unhandled action %q", out.Decision.Action))
		}
	}

	// Turn budget exhausted (or a cancel slipped in): yield to the user.
	if s.cancelAsked.Load() {
		return s.st.LastReply(), nil
	}
	if err := s.st.AppendSupervisor(pauseNote, s.rt.now()); err != nil {
		return "", s.fail(ctx, err)
	}
	s.yieldToUser(ctx)
	return s.st.LastReply(), nil
}

// applyWorkerResult folds a successful worker response into the shared state:
// transcript append, phase log overwrite, and the worker's tracker updates.
func (s *Session) applyWorkerResult(worker statex.WorkerID, resp contractx.WorkerResponse) error {
	now := s.rt.now()

	if msg := strings.TrimSpace(resp.Message); msg != "" {
		if err := s.st.AppendWorker(worker, msg, now); err != nil {
			return err
		}
	}

	phaseLog := strings.TrimSpace(resp.Updates.PhaseLog)
	if phaseLog == "" {
		phaseLog = "completed"
	}
	if err := s.st.SetPhaseLog(worker, phaseLog, now); err != nil {
		return err
	}

	if resp.Updates.ReadyForKPI {
		s.st.ReadyForKPI = true
	}
	if topic := strings.TrimSpace(resp.Updates.CoveredTopic); topic != "" && !containsTopic(s.st.CoveredTopics, topic) {
		s.st.CoveredTopics = append(s.st.CoveredTopics, topic)
	}
	if resp.Updates.AskedCount > s.st.QuestionsAsked {
		s.st.QuestionsAsked = resp.Updates.AskedCount
	}

	s.st.LastWorker = worker
	s.st.Touch(now)
	return nil
}

// trackInvocation updates the loop-prevention counters on the state itself,
// so they survive a snapshot save and a later resume.
func (s *Session) trackInvocation(worker statex.WorkerID) {
	if worker == s.st.LastInvoked {
		s.st.InvokeStreak++
	} else {
		s.st.LastInvoked = worker
		s.st.InvokeStreak = 1
	}
}

// checkIntegrity is the runtime-level fault detector: the state must stay
// valid and the transcript must never shrink.
func (s *Session) checkIntegrity(prevTranscript int) error {
	if err := s.st.Validate(); err != nil {
		return err
	}
	if len(s.st.Messages) < prevTranscript {
		return fmt.Errorf("transcript shrank from %d to %d entries", prevTranscript, len(s.st.Messages))
	}
	return nil
}

func (s *Session) yieldToUser(ctx context.Context) {
	s.phase = PhaseAwaitingUser
	if !s.rt.cfg.AutosaveEachTurn {
		return
	}
	if err := s.rt.store.SaveSnapshot(ctx, s.st); err != nil {
		log.Warn().
			Err(err).
			Str("session_id", s.st.SessionID).
			Msg("autosave failed")
	}
}

// finish moves the session to its terminal phase and persists the snapshot.
// This is the only place a snapshot is written on the finish path, so a
// normal completion saves exactly once.
func (s *Session) finish(ctx context.Context, status statex.SessionStatus) error {
	s.st.Status = status
	s.st.Touch(s.rt.now())
	s.phase = PhaseFinished

	if err := s.rt.store.SaveSnapshot(ctx, s.st); err != nil {
		return fmt.Errorf("save final snapshot: %w", err)
	}
	log.Info().
		Str("session_id", s.st.SessionID).
		Str("status", string(status)).
		Int("messages", len(s.st.Messages)).
		Int("questions_asked", s.st.QuestionsAsked).
		Msg("session finished")
	return nil
}

// fail marks the session failed after a runtime-level fault. The snapshot
// save is best effort; the fault itself is what the caller needs to see.
func (s *Session) fail(ctx context.Context, cause error) error {
	s.st.Status = statex.StatusFailed
	s.phase = PhaseFinished

	if err := s.rt.store.SaveSnapshot(ctx, s.st); err != nil {
		log.Error().
			Err(err).
			Str("session_id", s.st.SessionID).
			Msg("failed to persist failed-session snapshot")
	}
	return fmt.Errorf("%w: %v", contractx.ErrRuntimeFault, cause)
}

func containsTopic(topics []string, topic string) bool {
	for _, t := range topics {
		if strings.EqualFold(t, topic) {
			return true
		}
	}
	return false
}
