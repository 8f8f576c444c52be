package preflight

import (
	"path/filepath"
	"strings"

	"pipewatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Optional paths are only checked when configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckFileWritable("Event archive", cfg.Paths.EventsFile))

	if cfg.Journal.Enabled {
		results = append(results, CheckFileWritable("Journal", cfg.Paths.JournalFile))
	}

	if strings.TrimSpace(cfg.Paths.InboxDir) != "" {
		results = append(results, CheckDirectoryAccess("Inbox directory", cfg.Paths.InboxDir))
	}

	if strings.TrimSpace(cfg.Paths.APIBind) != "" {
		results = append(results, CheckBindAddress("Status API", cfg.Paths.APIBind))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func parentDir(path string) string {
	return filepath.Dir(filepath.Clean(path))
}
