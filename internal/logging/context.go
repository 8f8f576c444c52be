package logging

import (
	"context"
	"log/slog"
	"strings"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPipelineID is the standardized structured logging key for pipeline run identifiers.
	FieldPipelineID = "pipeline_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldRequestID is the standardized key for IPC or HTTP request identifiers.
	FieldRequestID = "request_id"
)

type contextKey string

const (
	pipelineIDKey contextKey = "pipeline_id"
	stageKey      contextKey = "stage"
	requestIDKey  contextKey = "request_id"
)

// WithPipelineID attaches a pipeline run identifier to ctx.
func WithPipelineID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pipelineIDKey, strings.TrimSpace(id))
}

// WithStage attaches a stage name to ctx.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, strings.TrimSpace(stage))
}

// WithRequestID attaches a request identifier to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(id))
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringFromContext(ctx, pipelineIDKey); ok {
		fields = append(fields, slog.String(FieldPipelineID, id))
	}
	if stage, ok := stringFromContext(ctx, stageKey); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := stringFromContext(ctx, requestIDKey); ok {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
