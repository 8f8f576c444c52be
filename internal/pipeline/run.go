package pipeline

import "time"

// RunStatus is the derived status of a pipeline run.
type RunStatus string

const (
	RunStarted    RunStatus = "started"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// StageRecord tracks one stage of a run.
type StageRecord struct {
	Status    StageStatus
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *time.Duration
	Data      map[string]any
}

// Run is one end-to-end execution of the workflow.
type Run struct {
	ID            string
	SourceRef     string
	Label         string
	StartTime     time.Time
	EndTime       *time.Time
	TotalDuration *time.Duration
	Status        RunStatus
	Stages        map[Stage]*StageRecord
	Summary       map[string]any
	EvictAt       *time.Time
}

func newRun(id, sourceRef, label string, now time.Time) *Run {
	stages := make(map[Stage]*StageRecord, len(allStages))
	for _, stage := range allStages {
		stages[stage] = &StageRecord{Status: StagePending, Data: map[string]any{}}
	}
	return &Run{
		ID:        id,
		SourceRef: sourceRef,
		Label:     label,
		StartTime: now,
		Status:    RunStarted,
		Stages:    stages,
		Summary:   map[string]any{},
	}
}

// Stage returns a copy of one stage record.
func (r Run) Stage(stage Stage) (StageRecord, bool) {
	record, ok := r.Stages[stage]
	if !ok || record == nil {
		return StageRecord{}, false
	}
	return *record, true
}

// Finished reports whether the run has reached completed or failed.
func (r Run) Finished() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}

// deriveStatus applies the stage aggregation rules. Failed and completed
// never revert to in_progress; a failed stage still overrides completed.
func (r *Run) deriveStatus() RunStatus {
	allCompleted := true
	anyActive := false
	for _, record := range r.Stages {
		switch record.Status {
		case StageFailed:
			return RunFailed
		case StageCompleted:
			anyActive = true
		case StageStarted:
			anyActive = true
			allCompleted = false
		default:
			allCompleted = false
		}
	}
	switch {
	case r.Status == RunFailed || r.Status == RunCompleted:
		return r.Status
	case allCompleted:
		return RunCompleted
	case anyActive:
		return RunInProgress
	default:
		return RunStarted
	}
}

// stampEnd sets EndTime and TotalDuration once.
func (r *Run) stampEnd(now time.Time) {
	if r.EndTime != nil {
		return
	}
	end := now
	total := end.Sub(r.StartTime)
	r.EndTime = &end
	r.TotalDuration = &total
}

func (r *Run) clone() Run {
	out := *r
	out.EndTime = copyTime(r.EndTime)
	out.TotalDuration = copyDuration(r.TotalDuration)
	out.EvictAt = copyTime(r.EvictAt)
	out.Summary = cloneMap(r.Summary)
	out.Stages = make(map[Stage]*StageRecord, len(r.Stages))
	for stage, record := range r.Stages {
		copied := StageRecord{
			Status:    record.Status,
			StartTime: copyTime(record.StartTime),
			EndTime:   copyTime(record.EndTime),
			Duration:  copyDuration(record.Duration),
			Data:      cloneMap(record.Data),
		}
		out.Stages[stage] = &copied
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
