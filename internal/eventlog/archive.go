package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Archive is the append-only NDJSON file of every record. It is never
// truncated; reopening an existing file continues after its last line.
type Archive struct {
	path string
	file *os.File
	enc  *json.Encoder
	// torn is set after a failed write that may have left a partial line.
	torn bool
}

// maxArchiveLine bounds a single record line when reading the archive.
const maxArchiveLine = 16 << 20

// OpenArchive opens (creating when absent) the archive at path along with its
// parent directory.
func OpenArchive(path string) (*Archive, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("archive path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	a := &Archive{path: trimmed}
	if err := a.ensureWriter(); err != nil {
		return nil, fmt.Errorf("open archive %s: %w", trimmed, err)
	}
	return a, nil
}

// Write appends one record as a single line.
func (a *Archive) Write(record Record) error {
	if err := a.ensureWriter(); err != nil {
		return err
	}
	if err := a.enc.Encode(record); err != nil {
		// Drop the handle; the next write reopens the file.
		_ = a.file.Close()
		a.file, a.enc = nil, nil
		a.torn = true
		return err
	}
	return nil
}

// Close releases the file handle.
func (a *Archive) Close() error {
	if a == nil || a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file, a.enc = nil, nil
	return err
}

// Path returns the on-disk location backing the archive.
func (a *Archive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

func (a *Archive) ensureWriter() error {
	if a.file != nil && a.enc != nil {
		return nil
	}
	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if a.torn {
		// Terminate any partial line so the next record starts cleanly.
		if _, err := file.WriteString("\n"); err != nil {
			_ = file.Close()
			return err
		}
		a.torn = false
	}
	a.file = file
	a.enc = json.NewEncoder(file)
	return nil
}

// ReadArchive scans the archive at path and returns records matching filter,
// most-recent-last. Malformed lines are skipped and counted.
func ReadArchive(path string, filter Filter) ([]Record, int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxArchiveLine)
	var (
		result  []Record
		skipped int
	)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			skipped++
			continue
		}
		if filter.matches(record) {
			result = append(result, record)
		}
	}
	if err := scanner.Err(); err != nil {
		return result, skipped, fmt.Errorf("read archive %s: %w", path, err)
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result, skipped, nil
}
