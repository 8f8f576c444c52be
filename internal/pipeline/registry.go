package pipeline

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pipewatch/internal/eventlog"
	"pipewatch/internal/logging"
)

const (
	// DefaultEvictionDelay keeps completed runs queryable for an hour.
	DefaultEvictionDelay = time.Hour
	// DefaultStaleAfter expires runs that never finish.
	DefaultStaleAfter = 24 * time.Hour

	componentName = "pipeline"
)

// EventLog is the subset of the event store the registry writes to.
type EventLog interface {
	Record(component, event string, data map[string]any) eventlog.Record
	Warn(component, event string, data map[string]any, impact, hint string) eventlog.Record
	GetByPipeline(id string, limit int) []eventlog.Record
}

// ComponentMarker receives stage outcomes for component health.
type ComponentMarker interface {
	MarkError(component string)
	ClearError(component string)
}

// Options configures a Registry.
type Options struct {
	Events        EventLog
	Components    ComponentMarker
	EvictionDelay time.Duration
	StaleAfter    time.Duration
	Clock         func() time.Time
	Logger        *slog.Logger
}

// Registry is the keyed collection of live pipeline runs.
type Registry struct {
	mu            sync.Mutex
	runs          map[string]*Run
	events        EventLog
	components    ComponentMarker
	evictionDelay time.Duration
	staleAfter    time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewRegistry constructs an empty registry. A negative StaleAfter disables
// stale expiry.
func NewRegistry(opts Options) *Registry {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	delay := opts.EvictionDelay
	if delay <= 0 {
		delay = DefaultEvictionDelay
	}
	stale := opts.StaleAfter
	if stale == 0 {
		stale = DefaultStaleAfter
	}
	events := opts.Events
	if events == nil {
		events = eventlog.NewStore(eventlog.Options{Logger: opts.Logger, Clock: now})
	}
	return &Registry{
		runs:          make(map[string]*Run),
		events:        events,
		components:    opts.Components,
		evictionDelay: delay,
		staleAfter:    stale,
		now:           now,
		logger:        logging.NewComponentLogger(opts.Logger, componentName),
	}
}

// Start registers a new run with every stage pending. An empty id is replaced
// by a generated UUID.
func (r *Registry) Start(id, sourceRef, label string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[id]; exists {
		r.events.Warn(componentName, "DUPLICATE_PIPELINE", map[string]any{
			eventlog.PipelineIDKey: id,
			"sourceRef":            sourceRef,
		}, "start ignored; existing run kept", "use a unique pipeline id per input")
		return Run{}, fmt.Errorf("%w: %s", ErrDuplicateRun, id)
	}

	run := newRun(id, sourceRef, label, r.now())
	r.runs[id] = run
	r.events.Record(componentName, "PIPELINE STARTED", map[string]any{
		eventlog.PipelineIDKey: id,
		"sourceRef":            sourceRef,
		"label":                label,
	})
	return run.clone(), nil
}

// UpdateStage applies a stage transition and recomputes the run status.
func (r *Registry) UpdateStage(id, stageName, statusValue string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		r.events.Warn(componentName, "UNKNOWN_PIPELINE", map[string]any{
			eventlog.PipelineIDKey: id,
			"stage":                stageName,
			"status":               statusValue,
		}, "stage update ignored", "start tracking before reporting stages, or the run was evicted")
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	stage, ok := ParseStage(stageName)
	if !ok {
		r.events.Warn(componentName, "UNKNOWN_STAGE", map[string]any{
			eventlog.PipelineIDKey: id,
			"stage":                stageName,
		}, "stage update ignored", "use one of the fixed stage names")
		return fmt.Errorf("%w: %s", ErrUnknownStage, stageName)
	}
	status, ok := ParseStageStatus(statusValue)
	if !ok {
		r.events.Warn(componentName, "INVALID_STAGE_STATUS", map[string]any{
			eventlog.PipelineIDKey: id,
			"stage":                string(stage),
			"status":               statusValue,
		}, "stage update ignored", "status must be started, completed or failed")
		return fmt.Errorf("%w: %q", ErrInvalidStatus, statusValue)
	}

	record := run.Stages[stage]
	if record.Status.Terminal() && record.Status != status {
		r.events.Warn(componentName, "TERMINAL_STAGE", map[string]any{
			eventlog.PipelineIDKey: id,
			"stage":                string(stage),
			"current":              string(record.Status),
			"status":               string(status),
		}, "stage update ignored", "terminal stages only accept a repeat of the same status")
		return fmt.Errorf("%w: %s is %s", ErrTerminalStage, stage, record.Status)
	}

	now := r.now()
	switch status {
	case StageStarted:
		if record.StartTime == nil {
			start := now
			record.StartTime = &start
		}
	case StageCompleted, StageFailed:
		end := now
		record.EndTime = &end
		if record.StartTime != nil {
			d := end.Sub(*record.StartTime)
			record.Duration = &d
		}
	}
	record.Status = status
	for k, v := range data {
		record.Data[k] = v
	}

	r.events.Record(stage.Component(), stageEventName(stage, status), map[string]any{
		eventlog.PipelineIDKey: id,
		"stage":                string(stage),
		"status":               string(status),
		"data":                 cloneMap(record.Data),
	})

	if r.components != nil {
		if status == StageFailed {
			r.components.MarkError(stage.Component())
		} else {
			r.components.ClearError(stage.Component())
		}
	}

	previous := run.Status
	run.Status = run.deriveStatus()
	if run.Finished() {
		run.stampEnd(now)
	}
	if run.Status != previous {
		r.logger.Debug("pipeline status changed",
			logging.String(logging.FieldPipelineID, id),
			logging.String("from", string(previous)),
			logging.String("to", string(run.Status)),
		)
	}
	return nil
}

// Complete finalizes a run, attaches summary and schedules eviction. A run
// that already failed stays failed.
func (r *Registry) Complete(id string, summary map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		r.events.Warn(componentName, "UNKNOWN_PIPELINE", map[string]any{
			eventlog.PipelineIDKey: id,
		}, "completion ignored", "the run was never started or was already evicted")
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}

	now := r.now()
	run.stampEnd(now)
	if run.Status != RunFailed {
		run.Status = RunCompleted
	}
	run.Summary = cloneMap(summary)
	evictAt := now.Add(r.evictionDelay)
	run.EvictAt = &evictAt

	r.events.Record(componentName, "PIPELINE COMPLETED", map[string]any{
		eventlog.PipelineIDKey: id,
		"status":               string(run.Status),
		"totalDurationMs":      run.TotalDuration.Milliseconds(),
		"summary":              cloneMap(summary),
	})
	return nil
}

// Get returns a snapshot of a live run.
func (r *Registry) Get(id string) (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, false
	}
	return run.clone(), true
}

// Active returns snapshots of every live run ordered by start time.
func (r *Registry) Active() []Run {
	r.mu.Lock()
	out := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, run.clone())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Count reports the number of live runs.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// Sweep evicts finished runs once the eviction delay has passed, counted
// from Complete or, without it, from the run's end time. Runs that never
// finish are expired after the stale window. It returns the removed ids.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, run := range r.runs {
		switch {
		case run.EvictAt != nil:
			if now.Before(*run.EvictAt) {
				continue
			}
			r.events.Record(componentName, "PIPELINE EVICTED", map[string]any{
				eventlog.PipelineIDKey: id,
				"status":               string(run.Status),
			})
		case run.EndTime != nil:
			// Finished through its stages without an explicit Complete.
			if now.Before(run.EndTime.Add(r.evictionDelay)) {
				continue
			}
			r.events.Record(componentName, "PIPELINE EVICTED", map[string]any{
				eventlog.PipelineIDKey: id,
				"status":               string(run.Status),
			})
		case r.staleAfter > 0 && now.Sub(run.StartTime) >= r.staleAfter:
			r.events.Warn(componentName, "PIPELINE EXPIRED", map[string]any{
				eventlog.PipelineIDKey: id,
				"status":               string(run.Status),
				"ageSeconds":           int64(now.Sub(run.StartTime).Seconds()),
			}, "unfinished run removed from live registry", "ensure collaborators call complete for every run")
		default:
			continue
		}
		delete(r.runs, id)
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return removed
}
