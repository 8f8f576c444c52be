package trigger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pipewatch/internal/config"
	"pipewatch/internal/logging"
	"pipewatch/internal/pipeline"
)

const defaultInboxPoll = 2 * time.Second

// InboxPoller starts a pipeline run for every new file dropped in a directory.
type InboxPoller struct {
	dir          string
	patterns     []string
	pollInterval time.Duration
	target       Target
	logger       *slog.Logger

	mu      sync.Mutex
	seen    map[string]struct{}
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewInboxPoller returns nil when no inbox directory is configured.
func NewInboxPoller(cfg *config.Config, target Target, logger *slog.Logger) *InboxPoller {
	if cfg == nil || target == nil {
		return nil
	}
	dir := strings.TrimSpace(cfg.Paths.InboxDir)
	if dir == "" {
		return nil
	}
	poll := cfg.InboxPollInterval()
	if poll <= 0 {
		poll = defaultInboxPoll
	}
	patterns := append([]string(nil), cfg.Trigger.InboxPatterns...)
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &InboxPoller{
		dir:          dir,
		patterns:     patterns,
		pollInterval: poll,
		target:       target,
		logger:       logging.NewComponentLogger(logger, "inbox-poller"),
		seen:         make(map[string]struct{}),
	}
}

// Dir returns the watched directory.
func (p *InboxPoller) Dir() string {
	if p == nil {
		return ""
	}
	return p.dir
}

// Start primes the seen set with files already present and begins polling.
func (p *InboxPoller) Start(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		p.mu.Unlock()
		return fmt.Errorf("create inbox dir: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	if err := p.Prime(); err != nil {
		logging.WarnWithContext(p.logger, "inbox prime failed; existing files may be picked up", "inbox_prime_failed",
			logging.Error(err),
			logging.String("dir", p.dir),
			logging.String(logging.FieldErrorHint, "check inbox_dir permissions"),
			logging.String(logging.FieldImpact, "files present at startup may start duplicate runs"),
		)
	}

	p.wg.Add(1)
	go p.loop(runCtx)

	p.logger.Info("inbox poller started",
		logging.String(logging.FieldEventType, "inbox_poller_started"),
		logging.String("dir", p.dir),
		logging.Duration("interval", p.pollInterval),
	)
	return nil
}

// Stop halts polling and waits for the loop to exit.
func (p *InboxPoller) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.cancel = nil
	p.running = false
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("inbox poller stopped",
		logging.String(logging.FieldEventType, "inbox_poller_stopped"),
	)
}

// Running reports whether the poll loop is active.
func (p *InboxPoller) Running() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *InboxPoller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Scan(ctx); err != nil {
				logging.WarnWithContext(p.logger, "inbox scan failed; will retry", "inbox_scan_failed",
					logging.Error(err),
					logging.String("dir", p.dir),
					logging.String(logging.FieldErrorHint, "check inbox_dir exists and is readable"),
					logging.String(logging.FieldImpact, "new files are not detected until the scan succeeds"),
				)
			}
		}
	}
}

// Prime records the files currently in the inbox without starting runs.
func (p *InboxPoller) Prime() error {
	files, err := p.list()
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range files {
		p.seen[f.path] = struct{}{}
	}
	return nil
}

// Scan starts a run for every file not seen before and returns the new run
// IDs in file name order. A file that disappears and returns is new again.
func (p *InboxPoller) Scan(ctx context.Context) ([]string, error) {
	files, err := p.list()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	fresh := make([]inboxFile, 0, len(files))
	present := make(map[string]struct{}, len(files))
	for _, f := range files {
		present[f.path] = struct{}{}
		if _, ok := p.seen[f.path]; ok {
			continue
		}
		p.seen[f.path] = struct{}{}
		fresh = append(fresh, f)
	}
	for path := range p.seen {
		if _, ok := present[path]; !ok {
			delete(p.seen, path)
		}
	}
	p.mu.Unlock()

	ids := make([]string, 0, len(fresh))
	for _, f := range fresh {
		if ctx.Err() != nil {
			return ids, ctx.Err()
		}
		id, err := p.handle(f)
		if err != nil {
			logging.WarnWithContext(p.logger, "inbox file not tracked", "inbox_track_failed",
				logging.Error(err),
				logging.String("path", f.path),
				logging.String(logging.FieldErrorHint, "inspect the event log for the rejected operation"),
				logging.String(logging.FieldImpact, "file has no pipeline run"),
			)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *InboxPoller) handle(f inboxFile) (string, error) {
	name := filepath.Base(f.path)
	p.target.ActivateWatcher(f.path, name)

	run, err := p.target.StartPipelineTracking("", f.path, name)
	if err != nil {
		return "", fmt.Errorf("start pipeline for %s: %w", name, err)
	}
	data := map[string]any{"path": f.path, "size": f.size}
	if err := p.target.UpdatePipelineStage(run.ID, string(pipeline.StageFileDetection), string(pipeline.StageStarted), data); err != nil {
		return run.ID, fmt.Errorf("mark detection started: %w", err)
	}
	if err := p.target.UpdatePipelineStage(run.ID, string(pipeline.StageFileDetection), string(pipeline.StageCompleted), data); err != nil {
		return run.ID, fmt.Errorf("mark detection completed: %w", err)
	}

	p.logger.Info("inbox file detected",
		logging.String(logging.FieldEventType, "inbox_file_detected"),
		logging.String(logging.FieldPipelineID, run.ID),
		logging.String("path", f.path),
		logging.Any("size", f.size),
	)
	return run.ID, nil
}

type inboxFile struct {
	path string
	size int64
}

func (p *InboxPoller) list() ([]inboxFile, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	files := make([]inboxFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !p.matches(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, inboxFile{
			path: filepath.Join(p.dir, name),
			size: info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

func (p *InboxPoller) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range p.patterns {
		if ok, _ := filepath.Match(strings.ToLower(pattern), lower); ok {
			return true
		}
	}
	return false
}
