// Package daemonrun hosts the foreground daemon process: logger setup, pid
// bookkeeping, the IPC socket and signal handling.
package daemonrun
