// Package api defines wire-format types and the read-only status facade
// shared by the IPC and HTTP layers.
//
// StatusService translates tracker snapshots into transport-friendly DTOs
// that dashboards and the CLI render without coupling to internal types. It
// exposes no mutation: stage transitions only happen through the tracker's
// explicit update operations.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// durations are reported in milliseconds.
package api
