// Package daemonctl launches, stops and inspects the pipewatch daemon on
// behalf of the CLI.
package daemonctl
