// Package pipeline owns the live registry of pipeline runs.
//
// Each run carries a fixed set of stage records, each a small state machine
// (pending → started → completed|failed). Stage updates recompute the run's
// derived status; failure is sticky. Completed runs stay queryable for an
// eviction delay and are removed by Sweep, which a cron-driven Sweeper calls
// on a schedule. Runs that never finish are expired after a stale window.
//
// Every mutation is recorded in the event log. Operations on unknown runs or
// stages return sentinel errors together with a warning event and never
// change state.
package pipeline
