// Package logging assembles structured slog loggers and formatting helpers used
// across pipewatch.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so tracker code can tag log
// lines with pipeline IDs and stage names. Every tracker event is mirrored
// through these loggers as a diagnostic trail; the durable pipeline event
// archive itself lives in the eventlog package.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
