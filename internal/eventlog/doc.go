// Package eventlog records every observable tracker action as an immutable
// Record.
//
// The Store keeps a bounded FIFO buffer for fast queries (most-recent-last)
// and hands each record, in call order, to registered sinks. The NDJSON
// Archive is the durable sink: it is append-only, never truncated, and written
// from a background goroutine so recording never blocks on disk I/O. Sink
// failures are logged and counted; they never reach the caller.
package eventlog
