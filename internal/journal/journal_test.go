package journal

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pipewatch/internal/eventlog"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"), "session-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalThroughAsyncSink(t *testing.T) {
	j := openTestJournal(t)
	sink := eventlog.NewAsyncSink("journal", nopCloser{j}, 16, nil)
	store := eventlog.NewStore(eventlog.Options{})
	store.AddSink(sink)

	store.Record("pipeline", "PIPELINE STARTED", map[string]any{eventlog.PipelineIDKey: "R1", "label": "a.csv"})
	store.Record("processing", "STAGE_FILEPROCESSING_STARTED", map[string]any{eventlog.PipelineIDKey: "R1"})
	store.Record("watcher", "STOPPED", nil)
	store.Record("pipeline", "PIPELINE STARTED", map[string]any{eventlog.PipelineIDKey: "R2"})
	if err := sink.Close(); err != nil {
		t.Fatalf("close sink: %v", err)
	}

	ctx := context.Background()
	history, err := j.History(ctx, HistoryFilter{PipelineID: "R1"})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 || history[0].Event != "PIPELINE STARTED" || history[1].Component != "processing" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[0].Data["label"] != "a.csv" {
		t.Fatalf("data not round-tripped: %v", history[0].Data)
	}

	latest, err := j.History(ctx, HistoryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(latest) != 1 || latest[0].PipelineID != "R2" {
		t.Fatalf("expected newest row, got %+v", latest)
	}

	pipelines, err := j.Pipelines(ctx, 0)
	if err != nil {
		t.Fatalf("Pipelines: %v", err)
	}
	if len(pipelines) != 2 || pipelines[0].ID != "R2" || pipelines[1].EventCount != 2 {
		t.Fatalf("unexpected pipelines: %+v", pipelines)
	}
	if pipelines[1].LastEvent != "STAGE_FILEPROCESSING_STARTED" {
		t.Fatalf("unexpected last event: %q", pipelines[1].LastEvent)
	}
}

func TestPruneRemovesOldRows(t *testing.T) {
	j := openTestJournal(t)
	old := time.Now().Add(-48 * time.Hour)
	for i, ts := range []time.Time{old, time.Now()} {
		if err := j.Write(eventlog.Record{Sequence: uint64(i + 1), Timestamp: ts, Component: "c", Event: "E", PipelineID: "R1"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	n, err := j.Prune(context.Background(), time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one pruned row, got %d", n)
	}
}

func TestReopenChecksSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, "a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = j.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	if _, err := Open(path, "b"); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

// nopCloser keeps the journal open after the sink closes so the test can query it.
type nopCloser struct{ *Journal }

func (nopCloser) Close() error { return nil }
