package api

import (
	"fmt"

	"pipewatch/internal/eventlog"
	"pipewatch/internal/pipeline"
	"pipewatch/internal/watcher"
)

// TrackerReader abstracts the tracker queries the facade needs.
type TrackerReader interface {
	GetStatus() watcher.Status
	GetPipelineStatus(id string) (pipeline.Run, bool)
	GetAllActivePipelines() []pipeline.Run
	GeneratePipelineReport(id string) (pipeline.Report, error)
	QueryLogs(filter eventlog.Filter) []eventlog.Record
}

// StatusService exposes read-only tracker views returning API DTOs.
type StatusService struct {
	tracker TrackerReader
}

// NewStatusService constructs a StatusService around the provided reader.
func NewStatusService(tracker TrackerReader) *StatusService {
	if tracker == nil {
		return nil
	}
	return &StatusService{tracker: tracker}
}

// WatcherStatus returns the watcher snapshot.
func (s *StatusService) WatcherStatus() WatcherStatus {
	if s == nil {
		return WatcherStatus{Mode: string(watcher.ModeStopped), ComponentStatus: map[string]ComponentStatus{}}
	}
	return FromWatcherStatus(s.tracker.GetStatus())
}

// ComponentStatus returns component entries keyed by name.
func (s *StatusService) ComponentStatus() map[string]ComponentStatus {
	return s.WatcherStatus().ComponentStatus
}

// PipelineStatus returns a live run, or an error wrapping pipeline.ErrUnknownRun.
func (s *StatusService) PipelineStatus(id string) (Pipeline, error) {
	if s == nil {
		return Pipeline{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownRun, id)
	}
	run, ok := s.tracker.GetPipelineStatus(id)
	if !ok {
		return Pipeline{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownRun, id)
	}
	return FromRun(run), nil
}

// ActivePipelines returns every live run ordered by start time.
func (s *StatusService) ActivePipelines() []Pipeline {
	if s == nil {
		return []Pipeline{}
	}
	return FromRuns(s.tracker.GetAllActivePipelines())
}

// RecentLogs returns up to limit of the newest records, oldest first.
func (s *StatusService) RecentLogs(limit int) []LogRecord {
	return s.Logs(LogFilter{Limit: limit}).Records
}

// Logs returns records matching filter and the cursor for the next poll.
func (s *StatusService) Logs(filter LogFilter) LogsResponse {
	if s == nil {
		return LogsResponse{Records: []LogRecord{}, Next: filter.Since}
	}
	records := s.tracker.QueryLogs(eventlog.Filter{
		Component:  filter.Component,
		PipelineID: filter.PipelineID,
		Since:      filter.Since,
		Limit:      filter.Limit,
	})
	next := filter.Since
	if len(records) > 0 {
		next = records[len(records)-1].Sequence
	}
	return LogsResponse{Records: FromRecords(records), Next: next}
}

// PipelineReport returns the report for a live run.
func (s *StatusService) PipelineReport(id string) (Report, error) {
	if s == nil {
		return Report{}, fmt.Errorf("%w: %s", pipeline.ErrUnknownRun, id)
	}
	report, err := s.tracker.GeneratePipelineReport(id)
	if err != nil {
		return Report{}, err
	}
	return FromReport(report), nil
}
