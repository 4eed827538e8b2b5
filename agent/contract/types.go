package contract

import (
	"strings"
	"time"

	statex "github.com/hirelane/interview-agent/agent/state"
)

type AgentType string

const (
	AgentTypeSupervisor AgentType = "supervisor"
	AgentTypeResearch   AgentType = "research"
	AgentTypeKPI        AgentType = "kpi"
	AgentTypeInterview  AgentType = "interview"
	AgentTypeFeedback   AgentType = "feedback"
)

// Action is the constrained decision surface of the supervisor. Free-text
// reasoning rides along in Decision.Reason but never carries control.
type Action string

const (
	ActionInvoke    Action = "invoke"
	ActionAwaitUser Action = "await_user"
	ActionFinish    Action = "finish"
)

type Decision struct {
	Action Action          `json:"action"`
	Worker statex.WorkerID `json:"worker,omitempty"`
	Reason string          `json:"reason,omitempty"`
	// Say is an optional supervisor-authored message for the user, appended
	// to the transcript tagged as such.
	Say string `json:"say,omitempty"`
}

// Validate rejects out-of-domain decisions so that unparseable model output
// can never steer the state machine.
func (d Decision) Validate() error {
	switch d.Action {
	case ActionInvoke:
		if !statex.KnownWorker(d.Worker) {
			return ErrRouting
		}
		return nil
	case ActionAwaitUser, ActionFinish:
		return nil
	default:
		return ErrRouting
	}
}

type DecisionRequest struct {
	Session *statex.ConversationState `json:"session"`
	// Stuck is set by the runtime after the same worker was invoked too many
	// times in a row; the supervisor must pick a different route.
	Stuck bool      `json:"stuck"`
	Now   time.Time `json:"now"`
}

type WorkerRequest struct {
	UserMessage string                    `json:"user_message"`
	Session     *statex.ConversationState `json:"session"`
	Now         time.Time                 `json:"now"`
}

type WorkerResponse struct {
	Message string       `json:"message"`
	Updates StateUpdates `json:"updates,omitempty"`
}

type StateUpdates struct {
	PhaseLog     string `json:"phase_log,omitempty"`
	ReadyForKPI  bool   `json:"ready_for_kpi,omitempty"`
	CoveredTopic string `json:"covered_topic,omitempty"`
	AskedCount   int    `json:"asked_count,omitempty"`
}

type ProfileHit struct {
	Source  string `json:"source"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type CandidateProfile struct {
	Name        string   `json:"name"`
	Headline    string   `json:"headline,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	GitHubURL   string   `json:"github_url,omitempty"`
	LinkedInURL string   `json:"linkedin_url,omitempty"`
}

func (p *CandidateProfile) TopSkills(n int) string {
	if p == nil || len(p.Skills) == 0 {
		return ""
	}
	if n > len(p.Skills) {
		n = len(p.Skills)
	}
	return strings.Join(p.Skills[:n], ", ")
}
