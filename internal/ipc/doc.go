// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket.
//
// The Pipewatch service lets local collaborators report pipeline progress
// (StartPipeline, UpdateStage, CompletePipeline), lets the CLI drive the
// watcher lifecycle (StartWatching, StopWatching, Activate) and the daemon
// itself (Start, Stop), and serves the same read-only views as the HTTP API.
// Client wraps net/rpc with typed helpers for each method.
package ipc
