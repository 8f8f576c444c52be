// Package logs reads the daemon's own log file for `pipewatch logs --daemon`.
//
// A Reader keeps a byte offset into the file so follow mode only returns
// lines appended since the previous call. Rotation and truncation reset the
// offset to the start of the new file.
package logs
