package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"labelflow/internal/alerts"
	"labelflow/internal/logging"
	"labelflow/internal/services"
	"labelflow/internal/store"
)

type recordedCall struct {
	step   string
	action string
}

type callLog struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (l *callLog) add(step, action string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, recordedCall{step: step, action: action})
}

func (l *callLog) actions(action string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for _, c := range l.calls {
		if c.action == action {
			names = append(names, c.step)
		}
	}
	return names
}

type fakeStep struct {
	name        string
	log         *callLog
	executeErr  error
	rollbackErr error
	panicOnRun  bool
	onExecute   func()
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(_ context.Context, pc Context) (Context, error) {
	s.log.add(s.name, "execute")
	if s.onExecute != nil {
		s.onExecute()
	}
	if s.panicOnRun {
		panic("boom")
	}
	if s.executeErr != nil {
		return pc, s.executeErr
	}
	return pc.WithReason(pc.Reason() + s.name + ";"), nil
}

func (s *fakeStep) Rollback(ctx context.Context, _ Context) error {
	s.log.add(s.name, "rollback")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return s.rollbackErr
}

type recordingSink struct {
	mu       sync.Mutex
	requests []alerts.Request
	notified int
}

func (r *recordingSink) CreateAlert(_ context.Context, req alerts.Request) (*store.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return &store.Alert{ID: "alert-" + req.Type, Type: req.Type, Severity: req.Severity, TaskID: req.TaskID}, nil
}

func (r *recordingSink) SendCriticalNotifications(context.Context, *store.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified++
	return nil
}

func newRunnerEngine(sink AlertSink) *Engine {
	return &Engine{alerts: sink, logger: logging.NewNop(), rollbackTimeout: time.Second, now: time.Now}
}

func runnerContext() Context {
	return NewContext(&store.Task{ID: 7, Status: store.StatusInProgress}, &store.Asset{ID: 3}, &store.WorkflowStage{ID: 1, Name: "Review"}, "u1")
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	log := &callLog{}
	e := newRunnerEngine(&recordingSink{})
	steps := []Step{
		&fakeStep{name: "a", log: log},
		&fakeStep{name: "b", log: log},
		&fakeStep{name: "c", log: log},
	}
	out, err := e.run(context.Background(), e.logger, PipelineCompletion, runnerContext(), steps)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Join(log.actions("execute"), ","); got != "a,b,c" {
		t.Fatalf("execute order = %q", got)
	}
	if len(log.actions("rollback")) != 0 {
		t.Fatalf("unexpected rollbacks: %v", log.actions("rollback"))
	}
	if out.final.Reason() != "a;b;c;" {
		t.Fatalf("context not threaded through steps: %q", out.final.Reason())
	}
}

func TestRunRollsBackCompletedStepsInReverse(t *testing.T) {
	log := &callLog{}
	sink := &recordingSink{}
	e := newRunnerEngine(sink)
	steps := []Step{
		&fakeStep{name: "a", log: log},
		&fakeStep{name: "b", log: log},
		&fakeStep{name: "c", log: log, executeErr: errors.New("disk full")},
		&fakeStep{name: "d", log: log},
	}
	_, err := e.run(context.Background(), e.logger, PipelineCompletion, runnerContext(), steps)
	if services.KindOf(err) != services.KindStepFailed {
		t.Fatalf("expected step_failed, got %v (%v)", services.KindOf(err), err)
	}
	if got := strings.Join(log.actions("rollback"), ","); got != "b,a" {
		t.Fatalf("rollback order = %q, want b,a", got)
	}
	if got := strings.Join(log.actions("execute"), ","); got != "a,b,c" {
		t.Fatalf("steps after the failure must not run: %q", got)
	}
	if len(sink.requests) != 0 {
		t.Fatalf("successful rollback must not alert, got %d alerts", len(sink.requests))
	}
}

func TestRunAggregatesRollbackFailuresIntoOneAlert(t *testing.T) {
	log := &callLog{}
	sink := &recordingSink{}
	e := newRunnerEngine(sink)
	steps := []Step{
		&fakeStep{name: "a", log: log, rollbackErr: errors.New("a stuck")},
		&fakeStep{name: "b", log: log, rollbackErr: errors.New("b stuck")},
		&fakeStep{name: "c", log: log, executeErr: errors.New("original")},
	}
	out, err := e.run(context.Background(), e.logger, PipelineVeto, runnerContext(), steps)
	if services.KindOf(err) != services.KindRollbackFailed {
		t.Fatalf("expected rollback_failed, got %v", err)
	}
	if got := strings.Join(log.actions("rollback"), ","); got != "b,a" {
		t.Fatalf("every completed step must be attempted: %q", got)
	}
	if len(sink.requests) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(sink.requests))
	}
	req := sink.requests[0]
	if req.Type != alerts.TypeRollbackFailed || req.Severity != store.SeverityCritical || req.TaskID != 7 || req.AssetID != 3 {
		t.Fatalf("unexpected alert request: %+v", req)
	}
	for _, want := range []string{"a stuck", "b stuck", "original"} {
		if !strings.Contains(req.Error, want) {
			t.Fatalf("alert error %q missing %q", req.Error, want)
		}
	}
	if req.Extra["failed_step"] != "c" || req.Extra["pipeline"] != PipelineVeto {
		t.Fatalf("unexpected alert extra: %v", req.Extra)
	}
	if sink.notified != 1 {
		t.Fatalf("expected critical notification, got %d", sink.notified)
	}
	if len(out.alertIDs) != 1 {
		t.Fatalf("expected alert id on outcome, got %v", out.alertIDs)
	}
	if !strings.Contains(err.Error(), "original") {
		t.Fatalf("original error must be preserved: %v", err)
	}
}

func TestRunTreatsCancellationAsStepFailure(t *testing.T) {
	log := &callLog{}
	e := newRunnerEngine(&recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	steps := []Step{
		&fakeStep{name: "a", log: log},
		&fakeStep{name: "b", log: log, onExecute: cancel},
		&fakeStep{name: "c", log: log},
	}
	_, err := e.run(ctx, e.logger, PipelineCompletion, runnerContext(), steps)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if got := strings.Join(log.actions("rollback"), ","); got != "b,a" {
		t.Fatalf("rollback must run on a detached context: %q", got)
	}
	if got := strings.Join(log.actions("execute"), ","); got != "a,b" {
		t.Fatalf("step after cancellation must not run: %q", got)
	}
}

func TestRunRecoversPanickingStep(t *testing.T) {
	log := &callLog{}
	e := newRunnerEngine(&recordingSink{})
	steps := []Step{
		&fakeStep{name: "a", log: log},
		&fakeStep{name: "b", log: log, panicOnRun: true},
	}
	_, err := e.run(context.Background(), e.logger, PipelineCompletion, runnerContext(), steps)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected panic to surface as error, got %v", err)
	}
	if got := strings.Join(log.actions("rollback"), ","); got != "a" {
		t.Fatalf("rollback = %q, want a", got)
	}
}

func TestRunAlertsOnConfigurationFailure(t *testing.T) {
	log := &callLog{}
	sink := &recordingSink{}
	e := newRunnerEngine(sink)
	steps := []Step{
		&fakeStep{name: "a", log: log},
		&fakeStep{name: "b", log: log, executeErr: services.Wrap(services.ErrConfiguration, "test", "b", "stage has no target data source", nil)},
	}
	_, err := e.run(context.Background(), e.logger, PipelineCompletion, runnerContext(), steps)
	if services.KindOf(err) != services.KindConfiguration {
		t.Fatalf("expected configuration kind, got %v", err)
	}
	if len(sink.requests) != 1 || sink.requests[0].Type != alerts.TypeWorkflowMisconfigured {
		t.Fatalf("expected one misconfiguration alert, got %+v", sink.requests)
	}
	if sink.requests[0].Reason != "stage has no target data source" {
		t.Fatalf("unexpected reason %q", sink.requests[0].Reason)
	}
}

func TestContextCopiesOnWrite(t *testing.T) {
	task := &store.Task{ID: 1, Status: store.StatusInProgress}
	pc := NewContext(task, &store.Asset{ID: 2, DataSourceID: 5}, nil, " u1 ")
	task.Status = store.StatusArchived
	if pc.Task().Status != store.StatusInProgress {
		t.Fatalf("context must not alias caller task")
	}
	got := pc.Task()
	got.Status = store.StatusCompleted
	if pc.Task().Status != store.StatusInProgress {
		t.Fatalf("getter must return a copy")
	}
	moved := pc.Asset()
	moved.DataSourceID = 9
	next := pc.WithAsset(moved)
	if pc.Asset().DataSourceID != 5 || next.Asset().DataSourceID != 9 {
		t.Fatalf("WithAsset must not modify the original context")
	}
	if pc.UserID() != "u1" {
		t.Fatalf("user id not trimmed: %q", pc.UserID())
	}
}

func TestContextCopiesStages(t *testing.T) {
	source := int64(7)
	current := &store.WorkflowStage{ID: 1, Name: "Review", TargetDataSourceID: &source}
	target := &store.WorkflowStage{ID: 2, Name: "Complete"}
	pc := NewContext(&store.Task{ID: 1}, &store.Asset{ID: 2}, current, "u1").WithTargetStage(target)

	current.Name = "Renamed"
	target.Name = "Renamed"
	if pc.CurrentStage().Name != "Review" || pc.TargetStage().Name != "Complete" {
		t.Fatalf("context must not alias caller stages")
	}

	got := pc.CurrentStage()
	*got.TargetDataSourceID = 99
	got.Name = "Mutated"
	if again := pc.CurrentStage(); again.Name != "Review" || *again.TargetDataSourceID != 7 {
		t.Fatalf("stage getter must return a deep copy, got %+v", again)
	}
	if pc.WithTargetStage(nil).TargetStage() != nil {
		t.Fatalf("nil target stage should stay nil")
	}
}
