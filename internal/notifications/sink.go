package notifications

import (
	"context"
	"strings"
	"time"

	"pipewatch/internal/config"
	"pipewatch/internal/eventlog"
)

const (
	pipelineCompletedEvent = "PIPELINE COMPLETED"
	watcherActivatedEvent  = "ACTIVATED"
	stageEventPrefix       = "STAGE_"
	stageFailedSuffix      = "_FAILED"
)

// Sink turns tracker records into notifications. It implements
// eventlog.Writer and is meant to run behind an eventlog.AsyncSink so slow
// HTTP calls never block the tracker.
type Sink struct {
	service       Service
	timeout       time.Duration
	stageFailures bool
	activation    bool
}

// NewSink returns nil when cfg has no topic configured.
func NewSink(cfg *config.Config, service Service) *Sink {
	if cfg == nil || !Enabled(service) {
		return nil
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sink{
		service:       service,
		timeout:       timeout,
		stageFailures: cfg.Notifications.StageFailures,
		activation:    cfg.Notifications.Activation,
	}
}

// Write publishes the notification matching record, if any. Errors are
// returned so the async sink counts and logs them.
func (s *Sink) Write(record eventlog.Record) error {
	event, payload, ok := s.classify(record)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.service.Publish(ctx, event, payload)
}

// Close is a no-op; the service holds no resources.
func (s *Sink) Close() error { return nil }

func (s *Sink) classify(record eventlog.Record) (Event, Payload, bool) {
	payload := Payload{}
	for k, v := range record.Data {
		payload[k] = v
	}
	payload["pipelineId"] = record.PipelineID

	switch {
	case record.Event == pipelineCompletedEvent:
		if payload.text("status", "") == "failed" {
			return EventPipelineFailed, payload, true
		}
		return EventPipelineCompleted, payload, true
	case s.stageFailures && strings.HasPrefix(record.Event, stageEventPrefix) && strings.HasSuffix(record.Event, stageFailedSuffix):
		if inner, ok := payload["data"].(map[string]any); ok {
			if reason, ok := inner["error"]; ok {
				payload["error"] = reason
			}
		}
		if _, ok := payload["stage"]; !ok {
			payload["stage"] = strings.TrimSuffix(strings.TrimPrefix(record.Event, stageEventPrefix), stageFailedSuffix)
		}
		return EventStageFailed, payload, true
	case s.activation && record.Event == watcherActivatedEvent:
		return EventWatcherActivated, payload, true
	default:
		return "", nil, false
	}
}
