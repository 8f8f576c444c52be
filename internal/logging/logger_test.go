package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var timeZero time.Time

func TestNewJSONWritesStandardKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "daemon.log")
	logger, err := New(Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
		SessionID:   "s-1",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", String(FieldPipelineID, "run-9"))
	logger.Debug("hidden")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), data)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	for _, key := range []string{"ts", "level", "msg", FieldPipelineID, FieldSessionID} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected key %q in %v", key, payload)
		}
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewCreatesNestedLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "pipewatch-run.log")

	logger, err := New(Options{Format: "json", OutputPaths: []string{logPath, logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("started")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Count(string(data), "\n") != 1 {
		t.Fatalf("expected one line despite duplicate outputs, got %q", data)
	}
}

func TestPrettyHandlerHeader(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, level, false))

	ctx := WithStage(WithPipelineID(context.Background(), "run-1"), "fileProcessing")
	WithContext(ctx, NewComponentLogger(logger, "pipeline")).Info("stage updated", Int("rows", 5))

	out := buf.String()
	if !strings.Contains(out, "INFO  pipeline: Run run-1 (fileProcessing) · stage updated") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "    - rows: 5") {
		t.Fatalf("expected rows field: %q", out)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WarnWithContext(logger, "unknown pipeline", "unknown_pipeline", String(FieldImpact, "update ignored"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[FieldEventType] != "unknown_pipeline" {
		t.Fatalf("unexpected event type: %v", payload[FieldEventType])
	}
	if payload[FieldImpact] != "update ignored" {
		t.Fatalf("impact should not be overwritten: %v", payload[FieldImpact])
	}
	if payload[FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "pipewatchd-old.log")
	current := filepath.Join(dir, "pipewatchd-current.log")
	archive := filepath.Join(dir, "pipeline-events.ndjson")
	for _, path := range []string{oldLog, current, archive} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		past := time.Now().AddDate(0, 0, -40)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := CleanupOldLogs(NewNop(), 30, RetentionTarget{Dir: dir, Pattern: "pipewatchd-*.log", Exclude: []string{current}})
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	for _, path := range []string{current, archive} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
	if CleanupOldLogs(nil, 0, RetentionTarget{Dir: dir}) != 0 {
		t.Fatal("expected retention 0 to disable pruning")
	}
}
