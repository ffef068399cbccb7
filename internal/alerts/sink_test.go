package alerts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"labelflow/internal/alerts"
	"labelflow/internal/logging"
	"labelflow/internal/notifications"
	"labelflow/internal/store"
	"labelflow/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.last = payload
	return n.err
}

func TestCreateAlertPersists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sink := alerts.NewSink(st, nil, logging.NewNop())
	ctx := context.Background()

	alert, err := sink.CreateAlert(ctx, alerts.Request{
		Type:     alerts.TypeRollbackFailed,
		Severity: store.SeverityCritical,
		TaskID:   1,
		AssetID:  2,
		UserID:   "u1",
		Reason:   "rollback failed",
		Error:    "boom",
		Extra:    map[string]string{"pipeline": "completion", " ": "dropped"},
	})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if alert.ID == "" {
		t.Fatal("expected alert id to be assigned")
	}

	stored, err := st.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if stored == nil || stored.Type != alerts.TypeRollbackFailed || stored.TaskID != 1 || stored.Error != "boom" {
		t.Fatalf("unexpected stored alert: %#v", stored)
	}
	if len(stored.Extra) != 1 || stored.Extra["pipeline"] != "completion" {
		t.Fatalf("unexpected extra: %#v", stored.Extra)
	}
}

func TestCreateAlertDefaultsSeverityAndRequiresType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	sink := alerts.NewSink(st, nil, nil)

	if _, err := sink.CreateAlert(context.Background(), alerts.Request{}); err == nil {
		t.Fatal("expected error for missing type")
	}
	alert, err := sink.CreateAlert(context.Background(), alerts.Request{Type: alerts.TypeIntegrityViolation})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if alert.Severity != store.SeverityWarning {
		t.Fatalf("severity = %s, want warning", alert.Severity)
	}
}

func TestSendCriticalNotifications(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := alerts.NewSink(st, notifier, logging.NewNop(), alerts.WithClock(func() time.Time { return fixed }))
	ctx := context.Background()

	critical, err := sink.CreateAlert(ctx, alerts.Request{Type: alerts.TypeRollbackFailed, Severity: store.SeverityCritical, TaskID: 1, Extra: map[string]string{"pipeline": "veto"}})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	warning, err := sink.CreateAlert(ctx, alerts.Request{Type: alerts.TypeIntegrityViolation, TaskID: 1})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}

	if err := sink.SendCriticalNotifications(ctx, critical); err != nil {
		t.Fatalf("SendCriticalNotifications failed: %v", err)
	}
	if err := sink.SendCriticalNotifications(ctx, warning); err != nil {
		t.Fatalf("SendCriticalNotifications for warning failed: %v", err)
	}

	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRollbackFailed {
		t.Fatalf("unexpected events: %v", notifier.events)
	}
	if notifier.last["taskID"] != "1" || notifier.last["pipeline"] != "veto" {
		t.Fatalf("unexpected payload: %v", notifier.last)
	}

	stored, err := st.GetAlert(ctx, critical.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if stored.NotifiedAt == nil || !stored.NotifiedAt.Equal(fixed) {
		t.Fatalf("expected notified_at %v, got %v", fixed, stored.NotifiedAt)
	}
}

func TestSendCriticalNotificationsReportsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{err: errors.New("offline")}
	sink := alerts.NewSink(st, notifier, logging.NewNop())
	ctx := context.Background()

	alert, err := sink.CreateAlert(ctx, alerts.Request{Type: alerts.TypeWorkflowMisconfigured, Severity: store.SeverityCritical})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if err := sink.SendCriticalNotifications(ctx, alert); err == nil {
		t.Fatal("expected notification error")
	}
	stored, err := st.GetAlert(ctx, alert.ID)
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if stored.NotifiedAt != nil {
		t.Fatal("expected alert to remain un-notified")
	}
}

func TestWithoutNotificationsSkipsPublish(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	notifier := &recordingNotifier{}
	sink := alerts.NewSink(st, notifier, nil, alerts.WithoutNotifications())

	alert, err := sink.CreateAlert(context.Background(), alerts.Request{Type: alerts.TypeRollbackFailed, Severity: store.SeverityCritical})
	if err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if err := sink.SendCriticalNotifications(context.Background(), alert); err != nil {
		t.Fatalf("SendCriticalNotifications failed: %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("expected no events, got %v", notifier.events)
	}
}
