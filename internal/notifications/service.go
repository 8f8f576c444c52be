package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pipewatch/internal/config"
)

const userAgent = "pipewatch/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventPipelineCompleted Event = "pipeline_completed"
	EventPipelineFailed    Event = "pipeline_failed"
	EventStageFailed       Event = "stage_failed"
	EventWatcherActivated  Event = "watcher_activated"
	EventTest              Event = "test"
)

// Payload carries event fields used to build the message.
type Payload map[string]any

// Service publishes notification events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
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
	msg, ok := buildMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func buildMessage(event Event, payload Payload) (message, bool) {
	id := payload.text("pipelineId", "unknown")
	switch event {
	case EventPipelineCompleted:
		return message{
			title: "Pipewatch - Pipeline Complete",
			body:  fmt.Sprintf("✅ Pipeline %s completed%s", id, payload.durationSuffix()),
			tags:  []string{"pipewatch", "pipeline", "completed"},
		}, true
	case EventPipelineFailed:
		return message{
			title:    "Pipewatch - Pipeline Failed",
			body:     fmt.Sprintf("❌ Pipeline %s finished with failures%s", id, payload.durationSuffix()),
			tags:     []string{"pipewatch", "pipeline", "failed"},
			priority: "high",
		}, true
	case EventStageFailed:
		body := fmt.Sprintf("⚠️ Stage %s failed in pipeline %s", payload.text("stage", "unknown"), id)
		if reason := payload.text("error", ""); reason != "" {
			body += "\nError: " + reason
		}
		return message{
			title:    "Pipewatch - Stage Failed",
			body:     body,
			tags:     []string{"pipewatch", "stage", "failed"},
			priority: "high",
		}, true
	case EventWatcherActivated:
		return message{
			title: "Pipewatch - Watcher Active",
			body:  fmt.Sprintf("📥 New input: %s", payload.text("triggerLabel", payload.text("triggerRef", "unknown"))),
			tags:  []string{"pipewatch", "watcher", "activated"},
		}, true
	case EventTest:
		return message{
			title:    "Pipewatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"pipewatch", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key, fallback string) string {
	value, ok := p[key]
	if !ok || value == nil {
		return fallback
	}
	s := strings.TrimSpace(fmt.Sprint(value))
	if s == "" {
		return fallback
	}
	return s
}

func (p Payload) durationSuffix() string {
	var ms float64
	switch v := p["totalDurationMs"].(type) {
	case int64:
		ms = float64(v)
	case int:
		ms = float64(v)
	case float64:
		ms = v
	default:
		return ""
	}
	d := (time.Duration(ms) * time.Millisecond).Round(time.Second)
	if d <= 0 {
		return ""
	}
	return " in " + d.String()
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

// Enabled reports whether svc actually delivers notifications.
func Enabled(svc Service) bool {
	if svc == nil {
		return false
	}
	_, noop := svc.(noopService)
	return !noop
}
