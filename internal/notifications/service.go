package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"labelflow/internal/config"
)

const userAgent = "labelflow/0.1.0"

// Event identifies the kind of notification being published.
type Event string

const (
	EventRollbackFailed        Event = "pipeline_rollback_failed"
	EventWorkflowMisconfigured Event = "workflow_misconfigured"
	EventAlert                 Event = "alert"
	EventTest                  Event = "test"
)

// Payload carries event-specific values. Keys are camelCase.
type Payload map[string]any

// Service defines the notification surface exposed to alerting.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Alerts.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Alerts.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRollbackFailed:
		body := fmt.Sprintf("🚨 Rollback failed for task %s", valueOr(payload, "taskID", "?"))
		if pipeline := valueOr(payload, "pipeline", ""); pipeline != "" {
			body += fmt.Sprintf(" (%s)", pipeline)
		}
		body += appendLine("Error", valueOr(payload, "error", ""))
		body += appendLine("Alert", valueOr(payload, "alertID", ""))
		return message{
			title:    "labelflow - Rollback Failed",
			body:     body,
			tags:     []string{"labelflow", "rollback", "alert"},
			priority: "urgent",
		}, true
	case EventWorkflowMisconfigured:
		body := fmt.Sprintf("⚠️ Workflow misconfigured: %s", valueOr(payload, "reason", "unknown"))
		body += appendLine("Task", valueOr(payload, "taskID", ""))
		body += appendLine("Alert", valueOr(payload, "alertID", ""))
		return message{
			title:    "labelflow - Workflow Misconfigured",
			body:     body,
			tags:     []string{"labelflow", "workflow", "config"},
			priority: "high",
		}, true
	case EventAlert:
		body := fmt.Sprintf("❗ %s: %s", valueOr(payload, "type", "alert"), valueOr(payload, "reason", ""))
		body += appendLine("Task", valueOr(payload, "taskID", ""))
		return message{
			title:    "labelflow - Alert",
			body:     strings.TrimSpace(body),
			tags:     []string{"labelflow", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "labelflow - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"labelflow", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func valueOr(payload Payload, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	text := strings.TrimSpace(fmt.Sprint(value))
	if text == "" {
		return fallback
	}
	return text
}

func appendLine(label, value string) string {
	if value == "" {
		return ""
	}
	return fmt.Sprintf("\n%s: %s", label, value)
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
