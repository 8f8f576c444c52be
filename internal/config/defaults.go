package config

const (
	defaultConfigPath           = "~/.config/pipewatch/config.toml"
	defaultLogDir               = "~/.local/share/pipewatch/logs"
	defaultEventsFileName       = "pipeline-events.ndjson"
	defaultJournalFileName      = "journal.db"
	defaultAPIBind              = "127.0.0.1:7491"
	defaultBufferCapacity       = 1000
	defaultEvictionDelaySeconds = 3600
	defaultStaleAfterSeconds    = 86400
	defaultSweepSchedule        = "@every 30s"
	defaultArchiveQueue         = 1024
	defaultInboxPollSeconds     = 2
	defaultNtfyTimeoutSeconds   = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// DefaultComponents are the collaborator subsystems tracked when the config
// does not list any.
var DefaultComponents = []string{
	"ingestion",
	"processing",
	"enrichment",
	"persistence",
	"crm_sync",
	"delivery",
	"tracking",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Tracker: Tracker{
			BufferCapacity:       defaultBufferCapacity,
			EvictionDelaySeconds: defaultEvictionDelaySeconds,
			StaleAfterSeconds:    defaultStaleAfterSeconds,
			SweepSchedule:        defaultSweepSchedule,
			ArchiveQueue:         defaultArchiveQueue,
			Components:           append([]string(nil), DefaultComponents...),
		},
		Trigger: Trigger{
			InboxPollSeconds: defaultInboxPollSeconds,
			InboxPatterns:    []string{"*.csv", "*.xlsx", "*.json"},
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			StageFailures:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
