// Package daemon coordinates the long-running pipewatch process.
//
// It wires configuration, the tracker, the durable event sinks (NDJSON
// archive and optional SQLite journal), the eviction sweeper, and the
// trigger sources into a single lifecycle with flock-based locking to
// prevent multiple instances. It also serves the read-only HTTP status API.
//
// Keep orchestration here: tracking semantics live in watcher and pipeline,
// and transports (IPC, HTTP) only translate calls into tracker operations.
package daemon
