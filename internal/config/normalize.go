package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTracker()
	c.normalizeTrigger()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.EventsFile) == "" {
		c.Paths.EventsFile = filepath.Join(c.Paths.LogDir, defaultEventsFileName)
	}
	if c.Paths.EventsFile, err = ExpandPath(c.Paths.EventsFile); err != nil {
		return fmt.Errorf("paths.events_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.JournalFile) == "" {
		c.Paths.JournalFile = filepath.Join(c.Paths.LogDir, defaultJournalFileName)
	}
	if c.Paths.JournalFile, err = ExpandPath(c.Paths.JournalFile); err != nil {
		return fmt.Errorf("paths.journal_file: %w", err)
	}
	if c.Paths.InboxDir, err = ExpandPath(strings.TrimSpace(c.Paths.InboxDir)); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("PIPEWATCH_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTracker() {
	if c.Tracker.BufferCapacity == 0 {
		c.Tracker.BufferCapacity = defaultBufferCapacity
	}
	if c.Tracker.EvictionDelaySeconds == 0 {
		c.Tracker.EvictionDelaySeconds = defaultEvictionDelaySeconds
	}
	c.Tracker.SweepSchedule = strings.TrimSpace(c.Tracker.SweepSchedule)
	if c.Tracker.SweepSchedule == "" {
		c.Tracker.SweepSchedule = defaultSweepSchedule
	}
	if c.Tracker.ArchiveQueue == 0 {
		c.Tracker.ArchiveQueue = defaultArchiveQueue
	}
	seen := make(map[string]struct{}, len(c.Tracker.Components))
	components := make([]string, 0, len(c.Tracker.Components))
	for _, name := range c.Tracker.Components {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		components = append(components, name)
	}
	if len(components) == 0 {
		components = append(components, DefaultComponents...)
	}
	c.Tracker.Components = components
}

func (c *Config) normalizeTrigger() {
	c.Trigger.NetlinkDevice = strings.TrimSpace(c.Trigger.NetlinkDevice)
	if c.Trigger.InboxPollSeconds == 0 {
		c.Trigger.InboxPollSeconds = defaultInboxPollSeconds
	}
	patterns := c.Trigger.InboxPatterns[:0]
	for _, pattern := range c.Trigger.InboxPatterns {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	c.Trigger.InboxPatterns = patterns
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("PIPEWATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds == 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
