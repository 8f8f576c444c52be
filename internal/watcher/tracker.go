// Package watcher provides Tracker, the context object that owns the event
// log, component status registry and pipeline run registry, and arbitrates
// the watcher mode.
//
// Modes move stopped → standby (StartWatching) → active (ActivateWatcher on
// the first trigger) → stopped (StopWatching). There is no active → standby
// path; a new activation cycle requires stop and start.
package watcher

import (
	"log/slog"
	"sync"
	"time"

	"pipewatch/internal/components"
	"pipewatch/internal/config"
	"pipewatch/internal/eventlog"
	"pipewatch/internal/logging"
	"pipewatch/internal/pipeline"
)

// Mode is the watcher's process-wide state.
type Mode string

const (
	ModeStopped Mode = "stopped"
	ModeStandby Mode = "standby"
	ModeActive  Mode = "active"

	componentName = "watcher"
)

// Status is a point-in-time view of the watcher.
type Status struct {
	IsWatching          bool
	Mode                Mode
	WaitingForFile      bool
	ActivePipelineCount int
	ComponentStatus     map[string]components.Entry
	TriggerRef          string
	TriggerLabel        string
	ActivatedAt         *time.Time
}

// Options configures a Tracker.
type Options struct {
	Components     []string
	BufferCapacity int
	EvictionDelay  time.Duration
	StaleAfter     time.Duration
	Clock          func() time.Time
	Logger         *slog.Logger
}

// OptionsFromConfig maps tracker settings from cfg.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Components:     cfg.Tracker.Components,
		BufferCapacity: cfg.Tracker.BufferCapacity,
		EvictionDelay:  cfg.EvictionDelay(),
		StaleAfter:     staleWindow(cfg.StaleAfter()),
		Logger:         logger,
	}
}

// staleWindow maps a zero or negative configured window to "disabled".
func staleWindow(window time.Duration) time.Duration {
	if window <= 0 {
		return -1
	}
	return window
}

// Tracker owns every registry. Construct one per process (or per test).
type Tracker struct {
	mu           sync.Mutex
	mode         Mode
	waiting      bool
	triggerRef   string
	triggerLabel string
	activatedAt  *time.Time

	now        func() time.Time
	logger     *slog.Logger
	events     *eventlog.Store
	components *components.Registry
	pipelines  *pipeline.Registry
}

// New builds a stopped tracker with fresh registries.
func New(opts Options) *Tracker {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	names := opts.Components
	if len(names) == 0 {
		names = config.DefaultComponents
	}
	events := eventlog.NewStore(eventlog.Options{
		Capacity: opts.BufferCapacity,
		Logger:   opts.Logger,
		Clock:    now,
	})
	comps := components.NewRegistry(names)
	events.SetObserver(comps)
	return &Tracker{
		mode:       ModeStopped,
		now:        now,
		logger:     logging.NewComponentLogger(opts.Logger, componentName),
		events:     events,
		components: comps,
		pipelines: pipeline.NewRegistry(pipeline.Options{
			Events:        events,
			Components:    comps,
			EvictionDelay: opts.EvictionDelay,
			StaleAfter:    opts.StaleAfter,
			Clock:         now,
			Logger:        opts.Logger,
		}),
	}
}

// Events exposes the event log for sinks and queries.
func (t *Tracker) Events() *eventlog.Store { return t.events }

// Components exposes the component status registry.
func (t *Tracker) Components() *components.Registry { return t.components }

// Pipelines exposes the run registry.
func (t *Tracker) Pipelines() *pipeline.Registry { return t.pipelines }

// StartWatching enters standby, waiting for a trigger. It is a logged no-op
// when already active.
func (t *Tracker) StartWatching() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode == ModeActive {
		t.events.Warn(componentName, "ALREADY_ACTIVE", map[string]any{
			"mode": string(t.mode),
		}, "start ignored; watcher keeps tracking", "stop the watcher before starting a new cycle")
		return true
	}

	t.mode = ModeStandby
	t.waiting = true
	t.triggerRef, t.triggerLabel, t.activatedAt = "", "", nil
	t.components.Reset(components.StatusStandby, true, nil)
	t.events.Record(componentName, "STANDBY_MODE", map[string]any{
		"components": t.components.Names(),
	})
	return true
}

// ActivateWatcher flips standby to active on the first trigger. In any other
// state it does nothing and returns false.
func (t *Tracker) ActivateWatcher(triggerRef, triggerLabel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.mode != ModeStandby || !t.waiting {
		return false
	}
	now := t.now()
	t.mode = ModeActive
	t.waiting = false
	t.triggerRef, t.triggerLabel = triggerRef, triggerLabel
	t.activatedAt = &now
	t.events.Record(componentName, "ACTIVATED", map[string]any{
		"triggerRef":   triggerRef,
		"triggerLabel": triggerLabel,
	})
	t.components.Reset(components.StatusActive, false, &now)
	return true
}

// StopWatching stops the watcher. Runs and logs are kept.
func (t *Tracker) StopWatching() {
	t.mu.Lock()
	defer t.mu.Unlock()

	previous := t.mode
	t.mode = ModeStopped
	t.waiting = false
	t.events.Record(componentName, "STOPPED", map[string]any{
		"previousMode": string(previous),
	})
}

// GetStatus returns a snapshot of the watcher and component state.
func (t *Tracker) GetStatus() Status {
	t.mu.Lock()
	status := Status{
		IsWatching:     t.mode != ModeStopped,
		Mode:           t.mode,
		WaitingForFile: t.waiting,
		TriggerRef:     t.triggerRef,
		TriggerLabel:   t.triggerLabel,
	}
	if t.activatedAt != nil {
		at := *t.activatedAt
		status.ActivatedAt = &at
	}
	t.mu.Unlock()

	status.ActivePipelineCount = t.pipelines.Count()
	status.ComponentStatus = t.components.Snapshot()
	return status
}

// StartPipelineTracking registers a run. See pipeline.Registry.Start.
func (t *Tracker) StartPipelineTracking(id, sourceRef, label string) (pipeline.Run, error) {
	return t.pipelines.Start(id, sourceRef, label)
}

// UpdatePipelineStage applies a stage transition. See pipeline.Registry.UpdateStage.
func (t *Tracker) UpdatePipelineStage(id, stage, status string, data map[string]any) error {
	return t.pipelines.UpdateStage(id, stage, status, data)
}

// CompletePipelineTracking finalizes a run. See pipeline.Registry.Complete.
func (t *Tracker) CompletePipelineTracking(id string, summary map[string]any) error {
	return t.pipelines.Complete(id, summary)
}

// GetPipelineStatus returns a live run snapshot.
func (t *Tracker) GetPipelineStatus(id string) (pipeline.Run, bool) {
	return t.pipelines.Get(id)
}

// GetAllActivePipelines returns every live run ordered by start time.
func (t *Tracker) GetAllActivePipelines() []pipeline.Run {
	return t.pipelines.Active()
}

// GeneratePipelineReport returns a run report or pipeline.ErrUnknownRun.
func (t *Tracker) GeneratePipelineReport(id string) (pipeline.Report, error) {
	return t.pipelines.Report(id)
}

// GetRecentLogs returns up to limit of the newest event records.
func (t *Tracker) GetRecentLogs(limit int) []eventlog.Record {
	return t.events.GetRecent(limit)
}

// QueryLogs returns buffered event records matching filter.
func (t *Tracker) QueryLogs(filter eventlog.Filter) []eventlog.Record {
	return t.events.Query(filter)
}
