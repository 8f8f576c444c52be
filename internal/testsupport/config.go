package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pipewatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The log directory exists on return; the inbox, journal and netlink trigger
// are disabled unless an option enables them.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.EventsFile = filepath.Join(cfgVal.Paths.LogDir, "pipeline-events.ndjson")
	cfgVal.Paths.JournalFile = filepath.Join(cfgVal.Paths.LogDir, "journal.db")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Tracker.SweepSchedule = "@every 1h"
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := os.MkdirAll(builder.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	return builder.cfg
}

// WithInbox enables the inbox poller on a fresh directory.
func WithInbox() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.InboxDir = filepath.Join(b.baseDir, "inbox")
		if err := os.MkdirAll(b.cfg.Paths.InboxDir, 0o755); err != nil {
			b.t.Fatalf("mkdir inbox: %v", err)
		}
	}
}

// WithJournal enables the SQLite journal.
func WithJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = true
	}
}

// WithAPIToken requires bearer authentication on the status API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithoutAPI disables the HTTP status API.
func WithoutAPI() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIBind = ""
	}
}

// WithEviction overrides eviction and stale windows in seconds.
func WithEviction(evictSeconds, staleSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracker.EvictionDelaySeconds = evictSeconds
		b.cfg.Tracker.StaleAfterSeconds = staleSeconds
	}
}

// WithNotifications points ntfy alerts at topic.
func WithNotifications(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
		b.cfg.Notifications.RequestTimeoutSeconds = 2
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}

// WriteConfig encodes cfg as TOML next to its log directory and returns the
// file path, for tests that drive config.Load or the CLI.
func WriteConfig(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	path := filepath.Join(BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
