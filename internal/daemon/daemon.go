package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"pipewatch/internal/api"
	"pipewatch/internal/config"
	"pipewatch/internal/eventlog"
	"pipewatch/internal/journal"
	"pipewatch/internal/logging"
	"pipewatch/internal/notifications"
	"pipewatch/internal/pipeline"
	"pipewatch/internal/trigger"
	"pipewatch/internal/watcher"
)

// ErrAlreadyRunning is returned by Start when the daemon is already started.
var ErrAlreadyRunning = errors.New("daemon already running")

// Options carries process-level settings that do not come from config.
type Options struct {
	SessionID string
	LogPath   string
	Clock     func() time.Time
}

// Daemon owns the tracker and everything that feeds or persists it.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	opts    Options
	tracker *watcher.Tracker
	status  *api.StatusService

	archive     *eventlog.AsyncSink
	journal     *journal.Journal
	journalSink *eventlog.AsyncSink
	notifier    notifications.Service
	notifySink  *eventlog.AsyncSink

	sweeper *pipeline.Sweeper
	inbox   *trigger.InboxPoller
	netlink *trigger.NetlinkMonitor
	apiSrv  *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	shutdown     chan struct{}
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	StartedAt     time.Time
	LockPath      string
	LogPath       string
	EventsPath    string
	JournalPath   string
	Watcher       watcher.Status
	Archive       eventlog.SinkStats
	Journal       *eventlog.SinkStats
	Notify        *eventlog.SinkStats
	NotifyHost    string
	InboxDir      string
	InboxActive   bool
	NetlinkDevice string
	NetlinkActive bool
	BufferLen     int
	BufferCap     int
	LastSequence  uint64
}

// New constructs a daemon with initialized dependencies. Failing to open the
// archive or journal is logged and tolerated; the tracker runs in memory.
func New(cfg *config.Config, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	trackerOpts := watcher.OptionsFromConfig(cfg, logger)
	trackerOpts.Clock = opts.Clock
	tracker := watcher.New(trackerOpts)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		opts:     opts,
		tracker:  tracker,
		status:   api.NewStatusService(tracker),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		shutdown: make(chan struct{}),
	}

	d.openArchive(logger)
	if cfg.Journal.Enabled {
		d.openJournal(logger)
	}
	d.openNotifier(logger)

	sweeper, err := pipeline.NewSweeper(tracker.Pipelines(), cfg.Tracker.SweepSchedule, logger)
	if err != nil {
		d.closeSinks()
		return nil, fmt.Errorf("create sweeper: %w", err)
	}
	d.sweeper = sweeper
	d.inbox = trigger.NewInboxPoller(cfg, tracker, logger)
	d.netlink = trigger.NewNetlinkMonitor(cfg, tracker, logger)
	d.apiSrv = newAPIServer(cfg, d, logger)
	return d, nil
}

func (d *Daemon) openArchive(logger *slog.Logger) {
	archive, err := eventlog.OpenArchive(d.cfg.Paths.EventsFile)
	if err != nil {
		logging.WarnWithContext(d.logger, "event archive unavailable; records stay in memory only", "archive_open_failed",
			logging.Error(err),
			logging.String("path", d.cfg.Paths.EventsFile),
			logging.String(logging.FieldErrorHint, "check events_file permissions and free disk space"),
			logging.String(logging.FieldImpact, "event history is lost on restart"),
		)
		return
	}
	d.archive = eventlog.NewAsyncSink("archive", archive, d.cfg.Tracker.ArchiveQueue, logger)
	d.tracker.Events().AddSink(d.archive)
}

func (d *Daemon) openJournal(logger *slog.Logger) {
	j, err := journal.Open(d.cfg.Paths.JournalFile, d.opts.SessionID)
	if err != nil {
		logging.WarnWithContext(d.logger, "journal unavailable; history queries fall back to the archive", "journal_open_failed",
			logging.Error(err),
			logging.String("path", d.cfg.Paths.JournalFile),
			logging.String(logging.FieldErrorHint, "remove or migrate the journal database"),
			logging.String(logging.FieldImpact, "history lookups scan the NDJSON archive"),
		)
		return
	}
	if days := d.cfg.Logging.RetentionDays; days > 0 {
		cutoff := d.now().AddDate(0, 0, -days)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		removed, err := j.Prune(ctx, cutoff)
		cancel()
		if err != nil {
			d.logger.Warn("journal prune failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "journal_prune_failed"),
				logging.String(logging.FieldErrorHint, "run pipewatch with a fresh journal_file if this persists"),
				logging.String(logging.FieldImpact, "journal keeps growing past retention"),
			)
		} else if removed > 0 {
			d.logger.Info("journal pruned",
				logging.String(logging.FieldEventType, "journal_pruned"),
				logging.Any("removed", removed),
				logging.Int("retention_days", days),
			)
		}
	}
	d.journal = j
	d.journalSink = eventlog.NewAsyncSink("journal", j, d.cfg.Tracker.ArchiveQueue, logger)
	d.tracker.Events().AddSink(d.journalSink)
}

func (d *Daemon) openNotifier(logger *slog.Logger) {
	d.notifier = notifications.NewService(d.cfg)
	sink := notifications.NewSink(d.cfg, d.notifier)
	if sink == nil {
		return
	}
	d.notifySink = eventlog.NewAsyncSink("notifications", sink, d.cfg.Tracker.ArchiveQueue, logger)
	d.tracker.Events().AddSink(d.notifySink)
}

// TestNotification sends a test message through the configured notifier.
func (d *Daemon) TestNotification(ctx context.Context) (bool, error) {
	if !notifications.Enabled(d.notifier) {
		return false, nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (d *Daemon) now() time.Time {
	if d.opts.Clock != nil {
		return d.opts.Clock()
	}
	return time.Now()
}

// Start acquires the daemon lock, puts the watcher in standby and starts the
// sweeper, trigger sources and HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running.Load() {
		return ErrAlreadyRunning
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pipewatch daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.tracker.StartWatching()
	d.sweeper.Start()

	if err := d.inbox.Start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "inbox poller failed to start", "inbox_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check inbox_dir"),
			logging.String(logging.FieldImpact, "new files must be reported via IPC"),
		)
	}
	if err := d.netlink.Start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "netlink monitor failed to start", "netlink_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check netlink_device"),
			logging.String(logging.FieldImpact, "device insertion does not activate the watcher"),
		)
	}
	if err := d.apiSrv.start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "status API failed to start", "api_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind for port conflicts"),
			logging.String(logging.FieldImpact, "dashboards cannot poll status over HTTP"),
		)
	}

	d.started = d.now()
	d.running.Store(true)
	d.logger.Info("pipewatch daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop halts background work, stops the watcher and releases the lock.
// Runs and buffered records are kept so a later Start resumes tracking.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.inbox.Stop()
	d.netlink.Stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	d.sweeper.Stop(stopCtx)
	cancel()
	d.apiSrv.stop()
	d.tracker.StopWatching()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
			logging.String(logging.FieldImpact, "a new daemon may refuse to start"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("pipewatch daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// Close stops the daemon and flushes the durable sinks.
func (d *Daemon) Close() error {
	d.Stop()
	var err error
	d.closeOnce.Do(func() {
		err = d.closeSinks()
	})
	return err
}

func (d *Daemon) closeSinks() error {
	var errs []error
	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	if d.journalSink != nil {
		if err := d.journalSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	} else if d.journal != nil {
		if err := d.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if d.notifySink != nil {
		if err := d.notifySink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RequestShutdown asks the hosting process to exit. It is safe to call more
// than once.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// Done is closed once RequestShutdown has been called.
func (d *Daemon) Done() <-chan struct{} {
	return d.shutdown
}

// Tracker exposes the tracker for transports.
func (d *Daemon) Tracker() *watcher.Tracker {
	return d.tracker
}

// StatusService exposes the read-only DTO facade.
func (d *Daemon) StatusService() *api.StatusService {
	return d.status
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.opts.LogPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		LockPath:      d.lockPath,
		LogPath:       d.opts.LogPath,
		Watcher:       d.tracker.GetStatus(),
		InboxDir:      d.inbox.Dir(),
		InboxActive:   d.inbox.Running(),
		NetlinkDevice: d.cfg.Trigger.NetlinkDevice,
		NetlinkActive: d.netlink.Running(),
		BufferLen:     d.tracker.Events().Len(),
		BufferCap:     d.tracker.Events().Capacity(),
		LastSequence:  d.tracker.Events().LastSequence(),
	}
	if status.Running {
		status.StartedAt = started
	}
	if d.archive != nil {
		status.EventsPath = d.cfg.Paths.EventsFile
		status.Archive = d.archive.Stats()
	}
	if d.journalSink != nil {
		stats := d.journalSink.Stats()
		status.Journal = &stats
		status.JournalPath = d.journal.Path()
	}
	if d.notifySink != nil {
		stats := d.notifySink.Stats()
		status.Notify = &stats
		if parsed, err := url.Parse(d.cfg.Notifications.NtfyTopic); err == nil {
			status.NotifyHost = parsed.Host
		}
	}
	return status
}

// APIStatus converts Status to its transport form.
func (d *Daemon) APIStatus() api.DaemonStatus {
	status := d.Status()
	payload := api.DaemonStatus{
		Running:  status.Running,
		PID:      status.PID,
		LockPath: status.LockPath,
		LogPath:  status.LogPath,
		Watcher:  api.FromWatcherStatus(status.Watcher),
		Sinks:    []api.SinkStatus{},
		Triggers: api.TriggerStatus{
			InboxDir:      status.InboxDir,
			InboxActive:   status.InboxActive,
			NetlinkDevice: status.NetlinkDevice,
			NetlinkActive: status.NetlinkActive,
		},
		BufferSize: status.BufferLen,
		BufferCap:  status.BufferCap,
		LastSeq:    status.LastSequence,
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if status.EventsPath != "" {
		payload.Sinks = append(payload.Sinks, api.FromSinkStats("archive", status.EventsPath, status.Archive))
	}
	if status.Journal != nil {
		payload.Sinks = append(payload.Sinks, api.FromSinkStats("journal", status.JournalPath, *status.Journal))
	}
	if status.Notify != nil {
		payload.Sinks = append(payload.Sinks, api.FromSinkStats("notifications", status.NotifyHost, *status.Notify))
	}
	return payload
}

// History returns durable records for filter from the journal when enabled,
// otherwise from the NDJSON archive. The second value names the source.
func (d *Daemon) History(ctx context.Context, filter journal.HistoryFilter) ([]eventlog.Record, string, error) {
	if d.journal != nil {
		records, err := d.journal.History(ctx, filter)
		if err == nil {
			return records, "journal", nil
		}
		logging.WarnWithContext(d.logger, "journal history query failed; scanning archive", "journal_history_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the journal database"),
			logging.String(logging.FieldImpact, "history lookups are slower"),
		)
	}
	records, skipped, err := eventlog.ReadArchive(d.cfg.Paths.EventsFile, eventlog.Filter{
		Component:  filter.Component,
		PipelineID: filter.PipelineID,
		Limit:      filter.Limit,
	})
	if skipped > 0 {
		d.logger.Warn("archive contains malformed lines",
			logging.Int("skipped", skipped),
			logging.String("path", d.cfg.Paths.EventsFile),
			logging.String(logging.FieldEventType, "archive_malformed_lines"),
			logging.String(logging.FieldErrorHint, "inspect the archive for partial writes"),
			logging.String(logging.FieldImpact, "some history entries are missing"),
		)
	}
	if err != nil {
		return records, "archive", fmt.Errorf("read archive: %w", err)
	}
	return records, "archive", nil
}

// HistoryPipelines lists runs known to the journal, newest activity first.
func (d *Daemon) HistoryPipelines(ctx context.Context, limit int) ([]journal.PipelineSummary, error) {
	if d.journal == nil {
		return nil, errors.New("journal disabled (set journal.enabled = true)")
	}
	return d.journal.Pipelines(ctx, limit)
}
