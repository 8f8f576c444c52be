package ipc

import "pipewatch/internal/api"

// StartRequest starts the daemon services.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon and asks the process to exit.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse mirrors the HTTP status payload.
type StatusResponse = api.DaemonStatus

// WatchRequest starts or stops the watcher.
type WatchRequest struct{}

// WatchResponse carries the watcher state after a lifecycle call.
type WatchResponse struct {
	Watcher api.WatcherStatus `json:"watcher"`
}

// ActivateRequest reports the first trigger of a cycle.
type ActivateRequest struct {
	TriggerRef   string `json:"triggerRef"`
	TriggerLabel string `json:"triggerLabel"`
}

// ActivateResponse reports whether the watcher moved from standby to active.
type ActivateResponse struct {
	Activated bool              `json:"activated"`
	Watcher   api.WatcherStatus `json:"watcher"`
}

// StartPipelineRequest registers a run. An empty ID is generated.
type StartPipelineRequest struct {
	ID        string `json:"id"`
	SourceRef string `json:"sourceRef"`
	Label     string `json:"label"`
}

// UpdateStageRequest applies one stage transition.
type UpdateStageRequest struct {
	ID     string         `json:"id"`
	Stage  string         `json:"stage"`
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// CompletePipelineRequest finalizes a run.
type CompletePipelineRequest struct {
	ID      string         `json:"id"`
	Summary map[string]any `json:"summary,omitempty"`
}

// PipelineRequest looks up one live run.
type PipelineRequest struct {
	ID string `json:"id"`
}

// PipelineResponse carries one run snapshot.
type PipelineResponse struct {
	Pipeline api.Pipeline `json:"pipeline"`
}

// PipelinesRequest lists live runs.
type PipelinesRequest struct{}

// PipelinesResponse contains live runs ordered by start time.
type PipelinesResponse struct {
	Pipelines []api.Pipeline `json:"pipelines"`
}

// ReportRequest fetches a run report.
type ReportRequest struct {
	ID string `json:"id"`
}

// ReportResponse carries a run report.
type ReportResponse struct {
	Report api.Report `json:"report"`
}

// LogsRequest filters buffered event records.
type LogsRequest = api.LogFilter

// LogsResponse contains buffered records and the follow cursor.
type LogsResponse = api.LogsResponse

// HistoryRequest queries durable records. With ListPipelines set, the
// journal's run summaries are returned instead of records.
type HistoryRequest struct {
	PipelineID    string `json:"pipelineId,omitempty"`
	Component     string `json:"component,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	ListPipelines bool   `json:"listPipelines,omitempty"`
}

// HistoryResponse contains durable records or run summaries.
type HistoryResponse struct {
	Source    string                `json:"source"`
	Records   []api.LogRecord       `json:"records,omitempty"`
	Pipelines []api.HistoryPipeline `json:"pipelines,omitempty"`
}

// TestNotifyRequest asks the daemon to send a test notification.
type TestNotifyRequest struct{}

// TestNotifyResponse reports whether a notification was sent.
type TestNotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
