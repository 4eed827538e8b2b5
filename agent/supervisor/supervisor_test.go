package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	statex "github.com/hirelane/interview-agent/agent/state"
)

type fakeClassifier struct {
	resp  contractx.Decision
	err   error
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, req contractx.DecisionRequest) (contractx.Decision, error) {
	f.calls++
	if f.err != nil {
		return contractx.Decision{}, f.err
	}
	return f.resp, nil
}

func testNow() time.Time {
	return time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
}

func newState(t *testing.T) *statex.ConversationState {
	t.Helper()
	return statex.NewConversationState("s1", "Jane Doe", testNow())
}

func decide(t *testing.T, s *Supervisor, st *statex.ConversationState, stuck bool) contractx.Decision {
	t.Helper()
	d, err := s.Decide(context.Background(), contractx.DecisionRequest{
		Session: st,
		Stuck:   stuck,
		Now:     testNow(),
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	return d
}

func TestDecideFreshSessionRoutesToResearch(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{}
	s := New(classifier, Config{})

	st := newState(t)
	if err := st.AppendUser("hi, I'm ready for my interview", testNow()); err != nil {
		t.Fatalf("AppendUser() error = %v", err)
	}

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionInvoke || d.Worker != statex.WorkerResearch {
		t.Fatalf("expected research invocation, got %+v", d)
	}
	if classifier.calls != 0 {
		t.Fatalf("classifier must not be consulted before research, got %d calls", classifier.calls)
	}
}

func TestDecideNoResearchStuckAsksUser(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})
	st := newState(t)
	_ = st.AppendUser("hello", testNow())

	d := decide(t, s, st, true)
	if d.Action != contractx.ActionAwaitUser {
		t.Fatalf("expected await_user, got %+v", d)
	}
	if d.Say == "" {
		t.Fatal("expected a user-facing clarification message")
	}
}

func TestDecideFailedResearchRetriesOnFreshInput(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})
	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "no profiles found for Jane Doe", testNow())
	_ = st.AppendUser("here is my github: https://github.com/janedoe", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionInvoke || d.Worker != statex.WorkerResearch {
		t.Fatalf("expected research retry, got %+v", d)
	}
}

func TestDecideFailedResearchWithoutFreshInputAsksUser(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})
	st := newState(t)
	_ = st.AppendUser("hello", testNow())
	_ = st.AppendWorker(statex.WorkerResearch, "I could not find any public profiles.", testNow())
	_ = st.SetPhaseLog(statex.WorkerResearch, "no profiles found for Jane Doe", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionAwaitUser {
		t.Fatalf("expected await_user after failed research, got %+v", d)
	}
}

func TestDecideFailedResearchNeverRoutesToKPI(t *testing.T) {
	t.Parallel()

	// Even a classifier that insists on KPI cannot reach it while the
	// ready-for-kpi latch is down.
	classifier := &fakeClassifier{
		resp: contractx.Decision{Action: contractx.ActionInvoke, Worker: statex.WorkerKPI},
	}
	s := New(classifier, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "lookup failed: provider unreachable", testNow())
	_ = st.AppendUser("ok, what are the benchmarks?", testNow())

	d := decide(t, s, st, false)
	if d.Action == contractx.ActionInvoke && d.Worker == statex.WorkerKPI {
		t.Fatalf("kpi must not run without verified profiles, got %+v", d)
	}
}

func TestDecideReadyForKPIRoutesToKPI(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{}
	s := New(classifier, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	st.ReadyForKPI = true
	_ = st.AppendUser("great, thanks for checking", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionInvoke || d.Worker != statex.WorkerKPI {
		t.Fatalf("expected kpi invocation, got %+v", d)
	}
	if classifier.calls != 0 {
		t.Fatalf("kpi gate must fire before the classifier, got %d calls", classifier.calls)
	}
}

func TestDecideClosureFinishes(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})
	st := newState(t)
	for _, id := range statex.AllWorkers() {
		_ = st.SetPhaseLog(id, "done", testNow())
	}
	_ = st.AppendUser("thank you, that's all from me", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionFinish {
		t.Fatalf("expected finish, got %+v", d)
	}
}

func TestDecideClosurePhrasesWithoutAllPhasesDoNotFinish(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})
	st := newState(t)
	_ = st.AppendUser("thanks!", testNow())

	d := decide(t, s, st, false)
	if d.Action == contractx.ActionFinish {
		t.Fatal("must not finish before every phase has reported")
	}
}

func TestDecideInvalidClassifierDecisionIsRoutingError(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		resp: contractx.Decision{Action: "escalate", Worker: "manager"},
	}
	s := New(classifier, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	_ = st.SetPhaseLog(statex.WorkerKPI, "defined 3 benchmarks", testNow())
	st.ReadyForKPI = true
	_ = st.AppendUser("ok", testNow())

	_, err := s.Decide(context.Background(), contractx.DecisionRequest{Session: st, Now: testNow()})
	if !errors.Is(err, contractx.ErrRouting) {
		t.Fatalf("expected ErrRouting, got %v", err)
	}
}

func TestDecideClassifierFailureFallsBackToRules(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{err: errors.New("provider unavailable")}
	s := New(classifier, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	_ = st.SetPhaseLog(statex.WorkerKPI, "defined 3 benchmarks", testNow())
	st.ReadyForKPI = true
	_ = st.AppendUser("I'm ready for the questions", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionInvoke || d.Worker != statex.WorkerInterview {
		t.Fatalf("expected rule fallback to interview, got %+v", d)
	}
	if classifier.calls != 1 {
		t.Fatalf("expected one classifier call, got %d", classifier.calls)
	}
}

func TestDecideStuckClampOverridesRepeatRoute(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		resp: contractx.Decision{Action: contractx.ActionInvoke, Worker: statex.WorkerInterview},
	}
	s := New(classifier, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	_ = st.SetPhaseLog(statex.WorkerKPI, "defined 3 benchmarks", testNow())
	_ = st.SetPhaseLog(statex.WorkerInterview, "questioning on go (3 questions asked)", testNow())
	st.ReadyForKPI = true
	st.LastWorker = statex.WorkerInterview
	_ = st.AppendWorker(statex.WorkerInterview, "another question", testNow())

	d := decide(t, s, st, true)
	if d.Action == contractx.ActionInvoke && d.Worker == statex.WorkerInterview {
		t.Fatalf("stuck re-decision must not repeat the same worker, got %+v", d)
	}
}

func TestRulePolicyForcesFeedbackAfterQuestionBudget(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{MaxQuestions: 3})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	_ = st.SetPhaseLog(statex.WorkerKPI, "defined 3 benchmarks", testNow())
	_ = st.SetPhaseLog(statex.WorkerInterview, "questioning on go (3 questions asked)", testNow())
	st.ReadyForKPI = true
	st.QuestionsAsked = 3
	_ = st.AppendUser("here is my final answer", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionInvoke || d.Worker != statex.WorkerFeedback {
		t.Fatalf("expected feedback invocation, got %+v", d)
	}
}

func TestRulePolicyFinishRequestRoutesToFeedback(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	_ = st.SetPhaseLog(statex.WorkerKPI, "defined 3 benchmarks", testNow())
	_ = st.SetPhaseLog(statex.WorkerInterview, "questioning on go (2 questions asked)", testNow())
	st.ReadyForKPI = true
	st.QuestionsAsked = 2
	_ = st.AppendUser("please wrap up the interview", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionInvoke || d.Worker != statex.WorkerFeedback {
		t.Fatalf("expected feedback invocation, got %+v", d)
	}
}

func TestRulePolicyAwaitsUserAfterWorkerReply(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})

	st := newState(t)
	_ = st.SetPhaseLog(statex.WorkerResearch, "verified 3 sources", testNow())
	_ = st.SetPhaseLog(statex.WorkerKPI, "defined 3 benchmarks", testNow())
	_ = st.SetPhaseLog(statex.WorkerInterview, "questioning on go (1 questions asked)", testNow())
	st.ReadyForKPI = true
	_ = st.AppendUser("ask me anything", testNow())
	_ = st.AppendWorker(statex.WorkerInterview, "what does a goroutine leak look like?", testNow())

	d := decide(t, s, st, false)
	if d.Action != contractx.ActionAwaitUser {
		t.Fatalf("expected await_user after a worker reply, got %+v", d)
	}
}

func TestDecideNilSessionFails(t *testing.T) {
	t.Parallel()

	s := New(nil, Config{})
	_, err := s.Decide(context.Background(), contractx.DecisionRequest{Now: testNow()})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecisionValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		d       contractx.Decision
		wantErr bool
	}{
		{"invoke known worker", contractx.Decision{Action: contractx.ActionInvoke, Worker: statex.WorkerResearch}, false},
		{"invoke unknown worker", contractx.Decision{Action: contractx.ActionInvoke, Worker: "manager"}, true},
		{"await user", contractx.Decision{Action: contractx.ActionAwaitUser}, false},
		{"finish", contractx.Decision{Action: contractx.ActionFinish}, false},
		{"unknown action", contractx.Decision{Action: "escalate"}, true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.d.Validate()
			if tc.wantErr && !errors.Is(err, contractx.ErrRouting) {
				t.Fatalf("Validate() error = %v, want ErrRouting", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}
