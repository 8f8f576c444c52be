package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchiveAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pipeline-events.ndjson")

	for session := 0; session < 2; session++ {
		archive, err := OpenArchive(path)
		if err != nil {
			t.Fatalf("OpenArchive: %v", err)
		}
		sink := NewAsyncSink("archive", archive, 4, nil)
		store := NewStore(Options{})
		store.AddSink(sink)
		store.Record("pipeline", "PIPELINE STARTED", map[string]any{PipelineIDKey: "R1"})
		store.Record("watcher", "STOPPED", nil)
		if err := sink.Close(); err != nil {
			t.Fatalf("close sink: %v", err)
		}
		if stats := sink.Stats(); stats.Written != 2 {
			t.Fatalf("expected 2 written, got %+v", stats)
		}
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()
	var lines []map[string]any
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var line map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not json: %q", scanner.Text())
		}
		lines = append(lines, line)
	}
	if len(lines) != 4 {
		t.Fatalf("expected archive to keep both sessions (4 lines), got %d", len(lines))
	}
	for _, key := range []string{"timestamp", "component", "event", "data", "pipelineId"} {
		if _, ok := lines[0][key]; !ok {
			t.Fatalf("missing %q in %v", key, lines[0])
		}
	}
	if lines[1]["pipelineId"] != SystemPipelineID {
		t.Fatalf("expected system pipeline id, got %v", lines[1]["pipelineId"])
	}
}

func TestReadArchiveFiltersAndSkipsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	archive, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	now := time.Now().UTC()
	for i, id := range []string{"R1", "R2", "R1"} {
		if err := archive.Write(Record{Sequence: uint64(i + 1), Timestamp: now, Component: "pipeline", Event: "X", PipelineID: id, Data: map[string]any{}}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	_, _ = f.WriteString(`"not a record"` + "\n")
	_ = f.Close()

	records, skipped, err := ReadArchive(path, Filter{PipelineID: "R1"})
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(records) != 2 || records[1].Sequence != 3 {
		t.Fatalf("unexpected records: %+v", records)
	}
	if skipped != 1 {
		t.Fatalf("expected one skipped line, got %d", skipped)
	}

	missing, _, err := ReadArchive(filepath.Join(t.TempDir(), "absent.ndjson"), Filter{})
	if err != nil || missing != nil {
		t.Fatalf("expected empty result for missing archive, got %v %v", missing, err)
	}
}

func TestReadArchiveSkipsTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	archive, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	now := time.Now().UTC()
	write := func(seq uint64) {
		t.Helper()
		if err := archive.Write(Record{Sequence: seq, Timestamp: now, Component: "pipeline", Event: "X", PipelineID: "R1", Data: map[string]any{}}); err != nil {
			t.Fatalf("write %d: %v", seq, err)
		}
	}
	write(1)
	if _, err := archive.file.WriteString(`{"seq":2,"timest` + "\n"); err != nil {
		t.Fatalf("write torn line: %v", err)
	}
	write(3)
	if err := archive.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records, skipped, err := ReadArchive(path, Filter{PipelineID: "R1"})
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(records) != 2 || records[0].Sequence != 1 || records[1].Sequence != 3 {
		t.Fatalf("expected records 1 and 3, got %+v", records)
	}
	if skipped != 1 {
		t.Fatalf("expected one skipped line, got %d", skipped)
	}
}

func TestArchiveTerminatesPartialLineAfterFailedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	archive, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	now := time.Now().UTC()
	if err := archive.Write(Record{Sequence: 1, Timestamp: now, Component: "pipeline", Event: "X", PipelineID: "R1", Data: map[string]any{}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// Leave a partial line without a newline, as an interrupted write would.
	if _, err := archive.file.WriteString(`{"seq":2,"comp`); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	_ = archive.file.Close()
	archive.file, archive.enc = nil, nil
	archive.torn = true

	if err := archive.Write(Record{Sequence: 3, Timestamp: now, Component: "pipeline", Event: "X", PipelineID: "R1", Data: map[string]any{}}); err != nil {
		t.Fatalf("write after failure: %v", err)
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	records, skipped, err := ReadArchive(path, Filter{})
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if len(records) != 2 || records[1].Sequence != 3 {
		t.Fatalf("record after the partial line was lost: %+v", records)
	}
	if skipped != 1 {
		t.Fatalf("expected the partial line to be skipped, got %d", skipped)
	}
}

type failingWriter struct{ closed bool }

func (w *failingWriter) Write(Record) error { return errors.New("disk full") }

func (w *failingWriter) Close() error {
	w.closed = true
	return nil
}

func TestAsyncSinkCountsFailuresWithoutPropagating(t *testing.T) {
	writer := &failingWriter{}
	sink := NewAsyncSink("archive", writer, 8, nil)
	store := NewStore(Options{})
	store.AddSink(sink)

	record := store.Record("delivery", "SENT", map[string]any{PipelineIDKey: "R1"})
	if record.Sequence != 1 {
		t.Fatalf("in-memory record should be unaffected: %+v", record)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !writer.closed {
		t.Fatal("expected writer to be closed")
	}
	if stats := sink.Stats(); stats.Failed != 1 || stats.Written != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if store.Len() != 1 {
		t.Fatal("expected record to remain buffered")
	}
}

type blockingWriter struct {
	release chan struct{}
}

func (w *blockingWriter) Write(Record) error {
	<-w.release
	return nil
}

func (w *blockingWriter) Close() error { return nil }

func TestAsyncSinkDropsWhenQueueFull(t *testing.T) {
	writer := &blockingWriter{release: make(chan struct{})}
	sink := NewAsyncSink("archive", writer, 1, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			sink.Append(Record{Sequence: uint64(i + 1)})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Append blocked on a full queue")
	}
	close(writer.release)
	_ = sink.Close()

	stats := sink.Stats()
	if stats.Dropped == 0 {
		t.Fatalf("expected drops, got %+v", stats)
	}
	if stats.Dropped+stats.Written != 10 {
		t.Fatalf("dropped+written should account for every record: %+v", stats)
	}
	// Appending after Close is ignored rather than panicking on a closed channel.
	sink.Append(Record{Sequence: 99})
}
