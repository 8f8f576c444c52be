// Package preflight provides readiness checks for the filesystem paths and
// listeners pipewatch depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failed check. A
//     failed check is a warning, not a fatal error, since the in-memory
//     tracker works without its archive.
//   - The CLI "pipewatch status" command uses the same results, plus
//     CheckStatusAPI, to display daemon health.
package preflight
