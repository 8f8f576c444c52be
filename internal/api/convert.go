package api

import (
	"time"

	"pipewatch/internal/components"
	"pipewatch/internal/eventlog"
	"pipewatch/internal/journal"
	"pipewatch/internal/pipeline"
	"pipewatch/internal/watcher"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func millis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}

// FromComponentEntry converts a component entry.
func FromComponentEntry(entry components.Entry) ComponentStatus {
	return ComponentStatus{
		Status:    string(entry.Status),
		LastCheck: formatTimePtr(entry.LastCheck),
		LastEvent: entry.LastEvent,
		Waiting:   entry.Waiting,
	}
}

// FromComponentEntries converts a component snapshot.
func FromComponentEntries(entries map[string]components.Entry) map[string]ComponentStatus {
	out := make(map[string]ComponentStatus, len(entries))
	for name, entry := range entries {
		out[name] = FromComponentEntry(entry)
	}
	return out
}

// FromWatcherStatus converts a watcher snapshot.
func FromWatcherStatus(status watcher.Status) WatcherStatus {
	return WatcherStatus{
		IsWatching:          status.IsWatching,
		Mode:                string(status.Mode),
		WaitingForFile:      status.WaitingForFile,
		ActivePipelineCount: status.ActivePipelineCount,
		ComponentStatus:     FromComponentEntries(status.ComponentStatus),
		TriggerRef:          status.TriggerRef,
		TriggerLabel:        status.TriggerLabel,
		ActivatedAt:         formatTimePtr(status.ActivatedAt),
	}
}

// FromStageRecord converts one stage record.
func FromStageRecord(stage pipeline.Stage, record pipeline.StageRecord) Stage {
	dto := Stage{
		Name:       string(stage),
		Status:     string(record.Status),
		StartTime:  formatTimePtr(record.StartTime),
		EndTime:    formatTimePtr(record.EndTime),
		DurationMs: millis(record.Duration),
	}
	if len(record.Data) > 0 {
		dto.Data = record.Data
	}
	return dto
}

// FromRun converts a run snapshot with stages in workflow order.
func FromRun(run pipeline.Run) Pipeline {
	dto := Pipeline{
		ID:              run.ID,
		SourceRef:       run.SourceRef,
		Label:           run.Label,
		Status:          string(run.Status),
		StartTime:       formatTime(run.StartTime),
		EndTime:         formatTimePtr(run.EndTime),
		TotalDurationMs: millis(run.TotalDuration),
		EvictAt:         formatTimePtr(run.EvictAt),
		Stages:          make([]Stage, 0, len(run.Stages)),
	}
	for _, stage := range pipeline.AllStages() {
		if record, ok := run.Stage(stage); ok {
			dto.Stages = append(dto.Stages, FromStageRecord(stage, record))
		}
	}
	if len(run.Summary) > 0 {
		dto.Summary = run.Summary
	}
	return dto
}

// FromRuns converts a slice of runs, preserving order.
func FromRuns(runs []pipeline.Run) []Pipeline {
	out := make([]Pipeline, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromRecord converts an event log record.
func FromRecord(record eventlog.Record) LogRecord {
	data := record.Data
	if data == nil {
		data = map[string]any{}
	}
	return LogRecord{
		Sequence:   record.Sequence,
		Timestamp:  formatTime(record.Timestamp),
		Component:  record.Component,
		Event:      record.Event,
		Data:       data,
		PipelineID: record.PipelineID,
	}
}

// FromRecords converts event log records, preserving order.
func FromRecords(records []eventlog.Record) []LogRecord {
	out := make([]LogRecord, 0, len(records))
	for _, record := range records {
		out = append(out, FromRecord(record))
	}
	return out
}

// FromReport converts a pipeline report.
func FromReport(report pipeline.Report) Report {
	dto := Report{
		Pipeline: PipelineSummary{
			ID:              report.Pipeline.ID,
			SourceRef:       report.Pipeline.SourceRef,
			Label:           report.Pipeline.Label,
			Status:          string(report.Pipeline.Status),
			StartTime:       formatTime(report.Pipeline.StartTime),
			EndTime:         formatTimePtr(report.Pipeline.EndTime),
			TotalDurationMs: millis(report.Pipeline.TotalDuration),
		},
		Stages:  make([]Stage, 0, len(report.Stages)),
		Logs:    FromRecords(report.Logs),
		Summary: report.Summary,
	}
	for _, stage := range report.Stages {
		dto.Stages = append(dto.Stages, FromStageRecord(stage.Stage, stage.Record))
	}
	if dto.Summary == nil {
		dto.Summary = map[string]any{}
	}
	return dto
}

// FromJournalPipelines converts journal run summaries.
func FromJournalPipelines(summaries []journal.PipelineSummary) []HistoryPipeline {
	out := make([]HistoryPipeline, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, HistoryPipeline{
			ID:         s.ID,
			FirstSeen:  formatTime(s.FirstSeen),
			LastSeen:   formatTime(s.LastSeen),
			LastEvent:  s.LastEvent,
			EventCount: s.EventCount,
		})
	}
	return out
}

// FromSinkStats converts sink counters.
func FromSinkStats(name, path string, stats eventlog.SinkStats) SinkStatus {
	return SinkStatus{
		Name:    name,
		Path:    path,
		Written: stats.Written,
		Dropped: stats.Dropped,
		Failed:  stats.Failed,
	}
}
