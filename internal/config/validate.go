package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTracker(); err != nil {
		return err
	}
	if err := c.validateTrigger(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.EventsFile == "" {
		return errors.New("paths.events_file must be set")
	}
	if c.Journal.Enabled && filepath.Clean(c.Paths.JournalFile) == filepath.Clean(c.Paths.EventsFile) {
		return errors.New("paths.journal_file must differ from paths.events_file")
	}
	return nil
}

func (c *Config) validateTracker() error {
	if c.Tracker.BufferCapacity < 0 {
		return errors.New("tracker.buffer_capacity must be positive")
	}
	if c.Tracker.EvictionDelaySeconds < 0 {
		return errors.New("tracker.eviction_delay_seconds must be positive")
	}
	if c.Tracker.StaleAfterSeconds < 0 {
		return errors.New("tracker.stale_after_seconds must be >= 0")
	}
	if c.Tracker.ArchiveQueue < 0 {
		return errors.New("tracker.archive_queue must be positive")
	}
	if _, err := cron.ParseStandard(c.Tracker.SweepSchedule); err != nil {
		return fmt.Errorf("tracker.sweep_schedule: %w", err)
	}
	return nil
}

func (c *Config) validateTrigger() error {
	if c.Trigger.InboxPollSeconds < 0 {
		return errors.New("trigger.inbox_poll_seconds must be >= 0")
	}
	for _, pattern := range c.Trigger.InboxPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("trigger.inbox_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be >= 0")
	}
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	parsed, err := url.Parse(topic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic: expected an http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
