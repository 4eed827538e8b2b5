package contract

import (
	"context"

	statex "github.com/hirelane/interview-agent/agent/state"
)

type Supervisor interface {
	Decide(ctx context.Context, req DecisionRequest) (Decision, error)
}

type Worker interface {
	Execute(ctx context.Context, req WorkerRequest) (WorkerResponse, error)
}

type Registry interface {
	Supervisor() Supervisor
	Research() Worker
	KPI() Worker
	Interview() Worker
	Feedback() Worker
}

// SearchProvider is the external web search collaborator used by the
// research worker. An empty result slice is a valid, non-error outcome.
type SearchProvider interface {
	SearchProfiles(ctx context.Context, query string) ([]ProfileHit, error)
}

// ProfileDirectory is the candidate profile database. FindByName returns
// ErrProfileNotFound when no record matches.
type ProfileDirectory interface {
	FindByName(ctx context.Context, name string) (*CandidateProfile, error)
}

// WorkerFor maps a worker identifier to its registry entry.
func WorkerFor(r Registry, id statex.WorkerID) (Worker, bool) {
	if r == nil {
		return nil, false
	}
	switch id {
	case statex.WorkerResearch:
		return r.Research(), true
	case statex.WorkerKPI:
		return r.KPI(), true
	case statex.WorkerInterview:
		return r.Interview(), true
	case statex.WorkerFeedback:
		return r.Feedback(), true
	default:
		return nil, false
	}
}
