// Package config loads, normalizes, and validates pipewatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PIPEWATCH_API_TOKEN. The Config type centralizes every knob the daemon and
// CLI need: where the event archive and journal live, how long completed
// pipeline runs stay queryable, which components the watcher tracks, and how
// new input is detected.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
