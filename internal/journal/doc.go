// Package journal keeps an optional SQLite index of event log records.
//
// The in-memory event buffer is bounded and runs are evicted from the live
// registry, so the journal is how operators answer "what happened to run X"
// after the fact. It implements eventlog.Writer and is driven through an
// eventlog.AsyncSink; queries never touch tracker state.
package journal
