package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Paths contains file, directory, and bind address configuration.
type Paths struct {
	LogDir      string `toml:"log_dir"`
	EventsFile  string `toml:"events_file"`
	JournalFile string `toml:"journal_file"`
	InboxDir    string `toml:"inbox_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Tracker contains limits and timings for the pipeline tracker.
type Tracker struct {
	// BufferCapacity bounds the in-memory event log. Default: 1000.
	BufferCapacity int `toml:"buffer_capacity"`
	// EvictionDelaySeconds is how long a completed run stays in the live
	// registry. Default: 3600.
	EvictionDelaySeconds int `toml:"eviction_delay_seconds"`
	// StaleAfterSeconds evicts runs that never complete. 0 disables. Default: 86400.
	StaleAfterSeconds int `toml:"stale_after_seconds"`
	// SweepSchedule is a cron expression driving eviction sweeps.
	SweepSchedule string `toml:"sweep_schedule"`
	// ArchiveQueue is the number of records buffered ahead of the archive writer.
	ArchiveQueue int `toml:"archive_queue"`
	// Components lists the collaborator subsystems whose status is tracked.
	Components []string `toml:"components"`
}

// Trigger contains configuration for input detection.
type Trigger struct {
	InboxPollSeconds int      `toml:"inbox_poll_seconds"`
	InboxPatterns    []string `toml:"inbox_patterns"`
	NetlinkDevice    string   `toml:"netlink_device"`
}

// Journal contains configuration for the SQLite event journal.
type Journal struct {
	Enabled bool `toml:"enabled"`
}

// Notifications contains configuration for ntfy pipeline alerts.
type Notifications struct {
	// NtfyTopic is the full topic URL. Empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	// StageFailures also alerts on every failed stage, not only on run completion.
	StageFailures bool `toml:"stage_failures"`
	// Activation alerts when a trigger moves the watcher from standby to active.
	Activation bool `toml:"activation"`
}

// Logging contains configuration for diagnostic log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for pipewatch.
//
// Configuration sections by subsystem:
//   - Paths: log directory, event archive, journal, inbox, API bind address
//   - Tracker: buffer capacity, eviction timing, tracked components
//   - Trigger: inbox polling and netlink device detection
//   - Journal: optional SQLite index of event records
//   - Notifications: ntfy alerts for finished and failed runs
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Tracker       Tracker       `toml:"tracker"`
	Trigger       Trigger       `toml:"trigger"`
	Journal       Journal       `toml:"journal"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// EnsureDirectories creates required directories for daemon operation.
// The inbox directory is created on a best-effort basis so the daemon can run
// when a mounted share is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, filepath.Dir(c.Paths.EventsFile)}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Paths.JournalFile))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.InboxDir) != "" {
		_ = os.MkdirAll(c.Paths.InboxDir, 0o755)
	}
	return nil
}

// SocketPath returns the IPC socket location inside the log directory.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "pipewatch.sock")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "pipewatch.lock")
}

// PIDPath returns the daemon PID file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "pipewatch.pid")
}

// EvictionDelay returns how long completed runs remain queryable.
func (c *Config) EvictionDelay() time.Duration {
	return time.Duration(c.Tracker.EvictionDelaySeconds) * time.Second
}

// StaleAfter returns the age after which unfinished runs are swept.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Tracker.StaleAfterSeconds) * time.Second
}

// NotificationTimeout returns the ntfy request timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// InboxPollInterval returns the inbox polling cadence.
func (c *Config) InboxPollInterval() time.Duration {
	return time.Duration(c.Trigger.InboxPollSeconds) * time.Second
}
