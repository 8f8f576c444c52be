package pipeline

import (
	"fmt"
	"time"

	"pipewatch/internal/eventlog"
)

// RunSummary is the header of a report.
type RunSummary struct {
	ID            string
	SourceRef     string
	Label         string
	Status        RunStatus
	StartTime     time.Time
	EndTime       *time.Time
	TotalDuration *time.Duration
}

// StageReport pairs a stage with its record for ordered rendering.
type StageReport struct {
	Stage  Stage
	Record StageRecord
}

// Report is the full view of one run.
type Report struct {
	Pipeline RunSummary
	Stages   []StageReport
	Logs     []eventlog.Record
	Summary  map[string]any
}

// Report builds a report for a live run, including every buffered log
// record tagged with its id. Evicted runs return ErrUnknownRun.
func (r *Registry) Report(id string) (Report, error) {
	run, ok := r.Get(id)
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	stages := make([]StageReport, 0, len(allStages))
	for _, stage := range allStages {
		if record, ok := run.Stages[stage]; ok {
			stages = append(stages, StageReport{Stage: stage, Record: *record})
		}
	}
	return Report{
		Pipeline: RunSummary{
			ID:            run.ID,
			SourceRef:     run.SourceRef,
			Label:         run.Label,
			Status:        run.Status,
			StartTime:     run.StartTime,
			EndTime:       run.EndTime,
			TotalDuration: run.TotalDuration,
		},
		Stages:  stages,
		Logs:    r.events.GetByPipeline(id, 0),
		Summary: run.Summary,
	}, nil
}
