// Package notifications delivers pipeline outcomes via ntfy.
//
// The Service publishes a small set of enumerated events. Sink adapts the
// service to an event log writer so the daemon can attach it next to the
// archive and journal; it turns completed runs, failed stages and watcher
// activations into notifications and ignores everything else. When no
// topic is configured, NewService returns a no-op implementation.
package notifications
