// Command pipewatch is the command-line client for the pipeline tracker.
//
// It starts and stops the background daemon, reports watcher and component
// health, lets collaborators record pipeline runs and stage transitions over
// the IPC socket, and prints reports and event logs. The hidden `daemon`
// subcommand runs the long-lived process itself.
package main
