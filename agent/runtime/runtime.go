package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	statex "github.com/hirelane/interview-agent/agent/state"
)

// Phase is the session position in the cycle loop.
type Phase string

const (
	PhaseAwaitingUser       Phase = "awaiting_user"
	PhaseSupervisorDeciding Phase = "supervisor_deciding"
	PhaseWorkerExecuting    Phase = "worker_executing"
	PhaseFinished           Phase = "finished"
)

const (
	defaultMaxConsecutiveRuns = 3
	defaultMaxTurnsPerMessage = 12
	defaultWorkerTimeout      = 60 * time.Second
)

var ErrSessionFinished = errors.New("session is finished")

type Config struct {
	// MaxConsecutiveRuns bounds how many times in a row the supervisor may
	// invoke the same worker before the runtime forces a re-decision.
	MaxConsecutiveRuns int
	// MaxTurnsPerMessage caps supervisor/worker cycles triggered by a single
	// user message; exceeding it yields control back to the user.
	MaxTurnsPerMessage int
	// WorkerTimeout bounds each worker execution. Zero disables the deadline.
	WorkerTimeout time.Duration
	// AutosaveEachTurn persists a snapshot whenever the session yields back to
	// the user, in addition to the mandatory save on finish.
	AutosaveEachTurn bool
}

func (c Config) withDefaults() Config {
	if c.MaxConsecutiveRuns <= 0 {
		c.MaxConsecutiveRuns = defaultMaxConsecutiveRuns
	}
	if c.MaxTurnsPerMessage <= 0 {
		c.MaxTurnsPerMessage = defaultMaxTurnsPerMessage
	}
	if c.WorkerTimeout < 0 {
		c.WorkerTimeout = defaultWorkerTimeout
	}
	return c
}

// Runtime owns the compiled cycle-turn graph and hands out Sessions. One
// Runtime serves many concurrent sessions; sessions never share mutable
// state with each other.
type Runtime struct {
	store    statex.Store
	registry contractx.Registry
	cfg      Config
	turn     compose.Runnable[*turnState, *turnState]
	now      func() time.Time
}

func New(ctx context.Context, store statex.Store, registry contractx.Registry, cfg Config) (*Runtime, error) {
	if store == nil {
		return nil, errors.New("runtime requires a snapshot store")
	}
	if registry == nil {
		return nil, errors.New("runtime requires an agent registry")
	}
	cfg = cfg.withDefaults()

	turn, err := compileCycleTurnGraph(ctx, registry, cfg.WorkerTimeout)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		store:    store,
		registry: registry,
		cfg:      cfg,
		turn:     turn,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// OpenSession resumes the session from its stored snapshot, or starts a new
// one when no snapshot exists. A resumed terminal session is returned in the
// finished phase; HandleMessage on it fails with ErrSessionFinished.
func (r *Runtime) OpenSession(ctx context.Context, sessionID, candidate string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is empty", contractx.ErrValidation)
	}

	st, err := r.store.LoadSnapshot(ctx, sessionID)
	switch {
	case err == nil:
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrRuntimeFault, err)
		}
		log.Info().
			Str("session_id", sessionID).
			Str("status", string(st.Status)).
			Int("messages", len(st.Messages)).
			Msg("session resumed from snapshot")
	case errors.Is(err, statex.ErrSnapshotNotFound):
		st = statex.NewConversationState(sessionID, candidate, r.now())
		log.Info().
			Str("session_id", sessionID).
			Str("candidate", st.Candidate).
			Msg("session started")
	default:
		return nil, fmt.Errorf("load session snapshot: %w", err)
	}

	phase := PhaseAwaitingUser
	if st.Status.Terminal() {
		phase = PhaseFinished
	}

	return &Session{
		rt:    r,
		st:    st,
		phase: phase,
	}, nil
}
