package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 250 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Reader tails a single log file.
type Reader struct {
	path   string
	offset int64
	ident  os.FileInfo
}

// NewReader returns a Reader positioned at the start of path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the file being read.
func (r *Reader) Path() string {
	return r.path
}

// Offset returns the byte position of the next unread line.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Last returns up to limit trailing lines and moves the offset to the end of
// the file. A missing file yields no lines and no error.
func (r *Reader) Last(limit int) ([]string, error) {
	file, info, err := r.open()
	if err != nil || file == nil {
		return nil, err
	}
	defer file.Close()

	r.ident = info
	if limit <= 0 {
		r.offset = info.Size()
		return nil, nil
	}

	scanner := newScanner(file)
	ring := make([]string, limit)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("determine log offset: %w", err)
	}
	r.offset = offset

	lines := make([]string, count)
	if count == limit {
		for i := range count {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Next returns lines appended since the last call. When none are available
// it polls until wait elapses or ctx is done.
func (r *Reader) Next(ctx context.Context, wait time.Duration) ([]string, error) {
	deadline := time.Now().Add(max(wait, 0))
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		lines, err := r.readForward()
		if err != nil || len(lines) > 0 {
			return lines, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reader) readForward() ([]string, error) {
	file, info, err := r.open()
	if err != nil || file == nil {
		return nil, err
	}
	defer file.Close()

	// The pointer link moves to a new file on daemon restart.
	if r.ident != nil && !os.SameFile(r.ident, info) {
		r.offset = 0
	}
	if info.Size() < r.offset {
		r.offset = 0
	}
	r.ident = info

	if _, err := file.Seek(r.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log file: %w", err)
	}
	scanner := newScanner(file)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("determine log offset: %w", err)
	}
	r.offset = offset
	return lines, nil
}

func (r *Reader) open() (*os.File, os.FileInfo, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.offset = 0
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, nil, fmt.Errorf("log path %q is a directory", r.path)
	}
	return file, info, nil
}

func newScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
