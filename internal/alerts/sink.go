package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"labelflow/internal/logging"
	"labelflow/internal/notifications"
	"labelflow/internal/store"
)

// Alert types raised by the pipeline engine.
const (
	TypeRollbackFailed        = "pipeline_rollback_failed"
	TypeWorkflowMisconfigured = "workflow_misconfigured"
	TypeIntegrityViolation    = "task_integrity_violation"
)

// Request describes an alert to record.
type Request struct {
	Type     string
	Severity store.AlertSeverity
	TaskID   int64
	AssetID  int64
	UserID   string
	Reason   string
	Error    string
	Extra    map[string]string
}

// Recorder persists alerts.
type Recorder interface {
	InsertAlert(ctx context.Context, alert *store.Alert) error
	MarkAlertNotified(ctx context.Context, id string, at time.Time) error
}

// Sink records alerts and escalates critical ones.
type Sink struct {
	recorder Recorder
	notifier notifications.Service
	logger   *slog.Logger
	enabled  bool
	now      func() time.Time
}

// Option customizes a Sink.
type Option func(*Sink)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// WithoutNotifications records alerts without publishing them.
func WithoutNotifications() Option {
	return func(s *Sink) {
		s.enabled = false
	}
}

// NewSink constructs a Sink. A nil notifier disables escalation.
func NewSink(recorder Recorder, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Sink {
	s := &Sink{
		recorder: recorder,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "alerts"),
		enabled:  notifier != nil,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAlert persists an alert built from req and returns it.
func (s *Sink) CreateAlert(ctx context.Context, req Request) (*store.Alert, error) {
	alertType := strings.TrimSpace(req.Type)
	if alertType == "" {
		return nil, errors.New("create alert: type is required")
	}
	severity := req.Severity
	if severity == "" {
		severity = store.SeverityWarning
	}
	alert := &store.Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Severity:  severity,
		TaskID:    req.TaskID,
		AssetID:   req.AssetID,
		UserID:    strings.TrimSpace(req.UserID),
		Reason:    strings.TrimSpace(req.Reason),
		Error:     strings.TrimSpace(req.Error),
		Extra:     copyExtra(req.Extra),
		CreatedAt: s.now().UTC(),
	}
	if err := s.recorder.InsertAlert(ctx, alert); err != nil {
		logging.ErrorWithContext(s.logger, "alert could not be recorded", "alert_record_failed",
			logging.Alert(alert.Type),
			logging.TaskID(alert.TaskID),
			logging.String("reason", alert.Reason),
			logging.Error(err),
			logging.Hint("check database health with labelflow doctor"),
		)
		return nil, fmt.Errorf("record alert: %w", err)
	}

	level := slog.LevelWarn
	if alert.Severity == store.SeverityCritical {
		level = slog.LevelError
	}
	s.logger.Log(ctx, level, "management alert raised",
		logging.Args(
			logging.Alert(alert.Type),
			logging.String("alert_id", alert.ID),
			logging.String("severity", string(alert.Severity)),
			logging.TaskID(alert.TaskID),
			logging.AssetID(alert.AssetID),
			logging.UserID(alert.UserID),
			logging.String("reason", alert.Reason),
		)...,
	)
	return alert, nil
}

// SendCriticalNotifications escalates a critical alert. Non-critical alerts
// and disabled notifiers are a no-op.
func (s *Sink) SendCriticalNotifications(ctx context.Context, alert *store.Alert) error {
	if alert == nil || alert.Severity != store.SeverityCritical || !s.enabled {
		return nil
	}
	if err := s.notifier.Publish(ctx, eventFor(alert.Type), payloadFor(alert)); err != nil {
		logging.WarnWithContext(s.logger, "alert notification failed", "alert_notify_failed",
			logging.Alert(alert.Type),
			logging.String("alert_id", alert.ID),
			logging.Error(err),
			logging.Hint("verify alerts.ntfy_topic is reachable"),
			logging.Impact("alert is recorded but nobody was paged"),
		)
		return fmt.Errorf("notify alert %s: %w", alert.ID, err)
	}
	now := s.now().UTC()
	if err := s.recorder.MarkAlertNotified(ctx, alert.ID, now); err != nil {
		return fmt.Errorf("mark alert %s notified: %w", alert.ID, err)
	}
	alert.NotifiedAt = &now
	return nil
}

func eventFor(alertType string) notifications.Event {
	switch alertType {
	case TypeRollbackFailed:
		return notifications.EventRollbackFailed
	case TypeWorkflowMisconfigured:
		return notifications.EventWorkflowMisconfigured
	default:
		return notifications.EventAlert
	}
}

func payloadFor(alert *store.Alert) notifications.Payload {
	payload := notifications.Payload{
		"alertID": alert.ID,
		"type":    alert.Type,
		"reason":  alert.Reason,
		"error":   alert.Error,
	}
	if alert.TaskID != 0 {
		payload["taskID"] = strconv.FormatInt(alert.TaskID, 10)
	}
	if alert.AssetID != 0 {
		payload["assetID"] = strconv.FormatInt(alert.AssetID, 10)
	}
	if pipeline := alert.Extra["pipeline"]; pipeline != "" {
		payload["pipeline"] = pipeline
	}
	return payload
}

func copyExtra(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(extra))
	for key, value := range extra {
		if key = strings.TrimSpace(key); key != "" {
			out[key] = value
		}
	}
	return out
}
