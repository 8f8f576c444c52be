package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ComponentStatus is the last known state of a collaborator component.
type ComponentStatus struct {
	Status    string `json:"status"`
	LastCheck string `json:"lastCheck,omitempty"`
	LastEvent string `json:"lastEvent,omitempty"`
	Waiting   bool   `json:"waiting"`
}

// WatcherStatus summarizes the watcher mode and component health.
type WatcherStatus struct {
	IsWatching          bool                       `json:"isWatching"`
	Mode                string                     `json:"mode"`
	WaitingForFile      bool                       `json:"waitingForFile"`
	ActivePipelineCount int                        `json:"activePipelineCount"`
	ComponentStatus     map[string]ComponentStatus `json:"componentStatus"`
	TriggerRef          string                     `json:"triggerRef,omitempty"`
	TriggerLabel        string                     `json:"triggerLabel,omitempty"`
	ActivatedAt         string                     `json:"activatedAt,omitempty"`
}

// Stage describes one stage record of a pipeline run.
type Stage struct {
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	StartTime  string         `json:"startTime,omitempty"`
	EndTime    string         `json:"endTime,omitempty"`
	DurationMs *int64         `json:"durationMs,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Pipeline is the transport representation of a live run.
type Pipeline struct {
	ID              string         `json:"id"`
	SourceRef       string         `json:"sourceRef"`
	Label           string         `json:"label"`
	Status          string         `json:"status"`
	StartTime       string         `json:"startTime"`
	EndTime         string         `json:"endTime,omitempty"`
	TotalDurationMs *int64         `json:"totalDurationMs,omitempty"`
	Stages          []Stage        `json:"stages"`
	Summary         map[string]any `json:"summary,omitempty"`
	EvictAt         string         `json:"evictAt,omitempty"`
}

// PipelineSummary is the header of a report.
type PipelineSummary struct {
	ID              string `json:"id"`
	SourceRef       string `json:"sourceRef"`
	Label           string `json:"label"`
	Status          string `json:"status"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime,omitempty"`
	TotalDurationMs *int64 `json:"totalDurationMs,omitempty"`
}

// LogRecord is an event log entry.
type LogRecord struct {
	Sequence   uint64         `json:"seq"`
	Timestamp  string         `json:"timestamp"`
	Component  string         `json:"component"`
	Event      string         `json:"event"`
	Data       map[string]any `json:"data"`
	PipelineID string         `json:"pipelineId"`
}

// Report is the full view of one run.
type Report struct {
	Pipeline PipelineSummary `json:"pipeline"`
	Stages   []Stage         `json:"stages"`
	Logs     []LogRecord     `json:"logs"`
	Summary  map[string]any  `json:"summary"`
}

// NotFound is returned to transport clients for unknown or evicted runs.
type NotFound struct {
	Error string `json:"error"`
	ID    string `json:"id"`
}

// LogFilter narrows log queries. Zero values match everything.
type LogFilter struct {
	Component  string `json:"component,omitempty"`
	PipelineID string `json:"pipelineId,omitempty"`
	Since      uint64 `json:"since,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// LogsResponse wraps log records with the cursor for follow-up polls.
type LogsResponse struct {
	Records []LogRecord `json:"records"`
	Next    uint64      `json:"next"`
}

// NewNotFound builds the not-found payload for id.
func NewNotFound(id string) NotFound {
	return NotFound{Error: "pipeline not found", ID: id}
}

// SinkStatus reports the counters of a durable event sink.
type SinkStatus struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// TriggerStatus reports which input detectors are running.
type TriggerStatus struct {
	InboxDir      string `json:"inboxDir,omitempty"`
	InboxActive   bool   `json:"inboxActive"`
	NetlinkDevice string `json:"netlinkDevice,omitempty"`
	NetlinkActive bool   `json:"netlinkActive"`
}

// DaemonStatus is the payload of GET /api/status.
type DaemonStatus struct {
	Running    bool          `json:"running"`
	PID        int           `json:"pid"`
	StartedAt  string        `json:"startedAt,omitempty"`
	LockPath   string        `json:"lockPath"`
	LogPath    string        `json:"logPath,omitempty"`
	Watcher    WatcherStatus `json:"watcher"`
	Sinks      []SinkStatus  `json:"sinks"`
	Triggers   TriggerStatus `json:"triggers"`
	BufferSize int           `json:"bufferSize"`
	BufferCap  int           `json:"bufferCapacity"`
	LastSeq    uint64        `json:"lastSequence"`
}

// HistoryResponse carries durable records and where they were read from
// ("journal" or "archive").
type HistoryResponse struct {
	Source  string      `json:"source"`
	Records []LogRecord `json:"records"`
}

// HistoryPipeline summarizes one run from the journal, including evicted runs.
type HistoryPipeline struct {
	ID         string `json:"id"`
	FirstSeen  string `json:"firstSeen"`
	LastSeen   string `json:"lastSeen"`
	LastEvent  string `json:"lastEvent"`
	EventCount int    `json:"eventCount"`
}
