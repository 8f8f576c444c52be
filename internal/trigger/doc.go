// Package trigger detects new pipeline input and hands it to the tracker.
//
// Two sources are provided. InboxPoller scans a drop directory and starts a
// pipeline run for each new file matching the configured patterns, marking
// the fileDetection stage as it goes. NetlinkMonitor listens for udev events
// for a configured block device and activates the watcher when media
// appears, so a standby daemon wakes up before the first file lands.
//
// Both sources are nil-safe: constructors return nil when the relevant
// configuration is empty, and Start/Stop/Running on a nil value are no-ops.
package trigger
