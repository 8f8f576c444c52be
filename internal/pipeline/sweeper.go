package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"pipewatch/internal/logging"
)

// DefaultSweepSchedule runs eviction twice a minute.
const DefaultSweepSchedule = "@every 30s"

// Sweeper drives Registry.Sweep on a cron schedule.
type Sweeper struct {
	cron     *cron.Cron
	registry *Registry
	logger   *slog.Logger
}

// NewSweeper schedules sweeps of registry. An empty schedule uses DefaultSweepSchedule.
func NewSweeper(registry *Registry, schedule string, logger *slog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s := &Sweeper{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		registry: registry,
		logger:   logging.NewComponentLogger(logger, "sweeper"),
	}
	job := cron.NewChain(cron.Recover(cronLogger{s.logger})).Then(cron.FuncJob(s.RunOnce))
	if _, err := s.cron.AddJob(schedule, job); err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Debug("sweeper started", logging.String(logging.FieldEventType, "sweeper_started"))
}

// Stop halts the schedule and waits for a running sweep or ctx expiry.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep using the registry clock.
func (s *Sweeper) RunOnce() {
	removed := s.registry.Sweep(s.registry.now())
	if len(removed) > 0 {
		s.logger.Info("pipeline runs evicted",
			logging.Int("count", len(removed)),
			logging.Any("pipeline_ids", removed),
			logging.String(logging.FieldEventType, "pipeline_sweep"),
		)
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.ErrorWithContext(l.logger, msg, "sweeper_panic",
		append([]logging.Attr{logging.Error(err)}, pairsToAttrs(keysAndValues)...)...)
}

func pairsToAttrs(keysAndValues []any) []logging.Attr {
	attrs := make([]logging.Attr, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		attrs = append(attrs, logging.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return attrs
}
