package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConversationState is the single shared ledger of one interview session.
// All routing decisions and worker results flow through it:
// - Messages is the chronological transcript; it is only ever appended to.
// - PhaseLogs holds one summary per worker, overwritten on each completion.
// - ReadyForKPI is latched by the research worker to unblock the KPI worker.
type ConversationState struct {
	// Identity
	SessionID string `json:"session_id"`
	Candidate string `json:"candidate"`

	// Transcript + coordination
	Messages    []Message           `json:"messages,omitempty"`
	LastWorker  WorkerID            `json:"last_worker,omitempty"`
	PhaseLogs   map[WorkerID]string `json:"phase_logs,omitempty"`
	ReadyForKPI bool                `json:"ready_for_kpi"`

	// Interview trackers
	CoveredTopics  []string `json:"covered_topics,omitempty"`
	QuestionsAsked int      `json:"questions_asked,omitempty"`

	// Loop prevention: the worker the supervisor routed to last and how many
	// times in a row. Part of the snapshot so a resumed session keeps its
	// routing history.
	LastInvoked  WorkerID `json:"last_invoked,omitempty"`
	InvokeStreak int      `json:"invoke_streak,omitempty"`

	Status    SessionStatus `json:"status"`
	Version   int           `json:"version,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type WorkerID string

const (
	WorkerResearch  WorkerID = "research"
	WorkerKPI       WorkerID = "kpi"
	WorkerInterview WorkerID = "interview"
	WorkerFeedback  WorkerID = "feedback"
)

// AllWorkers lists every routable worker, in the canonical session order.
func AllWorkers() []WorkerID {
	return []WorkerID{WorkerResearch, WorkerKPI, WorkerInterview, WorkerFeedback}
}

func KnownWorker(id WorkerID) bool {
	switch id {
	case WorkerResearch, WorkerKPI, WorkerInterview, WorkerFeedback:
		return true
	default:
		return false
	}
}

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
	StatusFailed    SessionStatus = "failed"
)

func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

type Role string

const (
	RoleUser       Role = "user"
	RoleWorker     Role = "worker"
	RoleSupervisor Role = "supervisor"
)

type Message struct {
	Role    Role      `json:"role"`
	Worker  WorkerID  `json:"worker,omitempty"` // author, for worker-tagged entries
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

var (
	ErrEmptyMessage  = errors.New("message content is empty")
	ErrInvalidWorker = errors.New("unknown worker id")
	ErrInvalidStatus = errors.New("invalid session status")
	ErrTerminalState = errors.New("session state is terminal")
	ErrNilState      = errors.New("conversation state is nil")
)

func NewConversationState(sessionID, candidate string, now time.Time) *ConversationState {
	return &ConversationState{
		SessionID: strings.TrimSpace(sessionID),
		Candidate: strings.TrimSpace(candidate),
		PhaseLogs: make(map[WorkerID]string, 4),
		Status:    StatusActive,
		Version:   1,
		UpdatedAt: now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsurePhaseLogs makes sure s.PhaseLogs is initialized.
func (s *ConversationState) EnsurePhaseLogs() {
	if s.PhaseLogs == nil {
		s.PhaseLogs = make(map[WorkerID]string, 4)
	}
}

// Append adds one entry to the transcript. There is deliberately no API for
// truncating or reordering Messages.
func (s *ConversationState) Append(msg Message, now time.Time) error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(msg.Content) == "" {
		return ErrEmptyMessage
	}
	if msg.Role == RoleWorker && !KnownWorker(msg.Worker) {
		return fmt.Errorf("%w: %q", ErrInvalidWorker, msg.Worker)
	}
	if msg.At.IsZero() {
		msg.At = now.UTC()
	}
	s.Messages = append(s.Messages, msg)
	s.Touch(now)
	return nil
}

func (s *ConversationState) AppendUser(text string, now time.Time) error {
	return s.Append(Message{Role: RoleUser, Content: text}, now)
}

func (s *ConversationState) AppendWorker(id WorkerID, text string, now time.Time) error {
	return s.Append(Message{Role: RoleWorker, Worker: id, Content: text}, now)
}

func (s *ConversationState) AppendSupervisor(text string, now time.Time) error {
	return s.Append(Message{Role: RoleSupervisor, Content: text}, now)
}

// SetPhaseLog overwrites the worker's phase summary. Overwriting, not
// appending, is intentional: the log reflects the latest completion only.
func (s *ConversationState) SetPhaseLog(id WorkerID, summary string, now time.Time) error {
	if s == nil {
		return ErrNilState
	}
	if !KnownWorker(id) {
		return fmt.Errorf("%w: %q", ErrInvalidWorker, id)
	}
	s.EnsurePhaseLogs()
	s.PhaseLogs[id] = strings.TrimSpace(summary)
	s.Touch(now)
	return nil
}

func (s *ConversationState) PhaseLog(id WorkerID) string {
	if s == nil || s.PhaseLogs == nil {
		return ""
	}
	return s.PhaseLogs[id]
}

// AllPhasesLogged reports whether every worker has a nonempty phase log.
func (s *ConversationState) AllPhasesLogged() bool {
	if s == nil {
		return false
	}
	for _, id := range AllWorkers() {
		if strings.TrimSpace(s.PhaseLog(id)) == "" {
			return false
		}
	}
	return true
}

// LastUserMessage returns the content of the most recent user entry.
func (s *ConversationState) LastUserMessage() string {
	if s == nil {
		return ""
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// LastReply returns the most recent non-user entry, which is what a host
// surfaces back to the user after a cycle turn.
func (s *ConversationState) LastReply() string {
	if s == nil {
		return ""
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role != RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return errors.New("session id is empty")
	}
	switch s.Status {
	case StatusActive, StatusCompleted, StatusCancelled, StatusFailed:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, s.Status)
	}
	// LastWorker, if set, must name a worker that has been invoked at least
	// once; an invocation always leaves a phase log (success or synthetic
	// failure entry).
	if s.LastWorker != "" {
		if !KnownWorker(s.LastWorker) {
			return fmt.Errorf("%w: last_worker=%q", ErrInvalidWorker, s.LastWorker)
		}
		if strings.TrimSpace(s.PhaseLog(s.LastWorker)) == "" {
			return fmt.Errorf("last worker %q has no phase log", s.LastWorker)
		}
	}
	if s.LastInvoked != "" && !KnownWorker(s.LastInvoked) {
		return fmt.Errorf("%w: last_invoked=%q", ErrInvalidWorker, s.LastInvoked)
	}
	if s.InvokeStreak < 0 {
		return fmt.Errorf("invoke streak is negative: %d", s.InvokeStreak)
	}
	for id := range s.PhaseLogs {
		if !KnownWorker(id) {
			return fmt.Errorf("%w: phase_logs key=%q", ErrInvalidWorker, id)
		}
	}
	return nil
}

// Clone returns a deep copy, used for snapshot hooks so that callers can
// never mutate the live session record.
func (s *ConversationState) Clone() (*ConversationState, error) {
	if s == nil {
		return nil, ErrNilState
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone conversation state: %w", err)
	}
	var out ConversationState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clone conversation state: %w", err)
	}
	out.EnsurePhaseLogs()
	return &out, nil
}
