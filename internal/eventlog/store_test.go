package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu      sync.Mutex
	records []Record
}

func (s *recordingSink) Append(r Record) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
}

type observation struct {
	component string
	event     string
	at        time.Time
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *recordingObserver) Observe(component, event string, at time.Time) {
	o.mu.Lock()
	o.seen = append(o.seen, observation{component, event, at})
	o.mu.Unlock()
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordDefaultsPipelineID(t *testing.T) {
	store := NewStore(Options{})

	sys := store.Record("watcher", "STANDBY_MODE", nil)
	if sys.PipelineID != SystemPipelineID {
		t.Fatalf("expected system pipeline id, got %q", sys.PipelineID)
	}
	if sys.Data == nil {
		t.Fatal("expected non-nil data map")
	}

	run := store.Record("pipeline", "PIPELINE STARTED", map[string]any{PipelineIDKey: "R1"})
	if run.PipelineID != "R1" {
		t.Fatalf("expected R1, got %q", run.PipelineID)
	}
	if run.Sequence != sys.Sequence+1 {
		t.Fatalf("expected consecutive sequences, got %d then %d", sys.Sequence, run.Sequence)
	}
}

func TestRecordCopiesCallerData(t *testing.T) {
	store := NewStore(Options{})
	data := map[string]any{"rows": 1}
	store.Record("processing", "PARSED", data)
	data["rows"] = 99

	got := store.GetRecent(1)[0]
	if got.Data["rows"] != 1 {
		t.Fatalf("record mutated through caller map: %v", got.Data)
	}
}

func TestBufferEvictsOldestPastCapacity(t *testing.T) {
	store := NewStore(Options{})
	for i := 0; i < DefaultCapacity; i++ {
		store.Record("c", fmt.Sprintf("E%d", i), nil)
	}
	secondOldest := store.GetRecent(DefaultCapacity)[1]

	store.Record("c", "E1000", nil)

	if store.Len() != DefaultCapacity {
		t.Fatalf("buffer exceeded capacity: %d", store.Len())
	}
	recent := store.GetRecent(DefaultCapacity)
	if recent[0].Event != secondOldest.Event || recent[0].Sequence != secondOldest.Sequence {
		t.Fatalf("expected %s at head, got %s", secondOldest.Event, recent[0].Event)
	}
	if recent[len(recent)-1].Event != "E1000" {
		t.Fatalf("expected newest last, got %s", recent[len(recent)-1].Event)
	}
}

func TestQueriesAreMostRecentLastAndLimited(t *testing.T) {
	store := NewStore(Options{Capacity: 10})
	store.Record("ingestion", "A", map[string]any{PipelineIDKey: "R1"})
	store.Record("delivery", "B", map[string]any{PipelineIDKey: "R2"})
	store.Record("ingestion", "C", map[string]any{PipelineIDKey: "R1"})
	store.Record("ingestion", "D", nil)

	byComponent := store.GetByComponent("ingestion", 2)
	if len(byComponent) != 2 || byComponent[0].Event != "C" || byComponent[1].Event != "D" {
		t.Fatalf("unexpected component query: %+v", byComponent)
	}

	byPipeline := store.GetByPipeline("R1", 0)
	if len(byPipeline) != 2 || byPipeline[0].Event != "A" || byPipeline[1].Event != "C" {
		t.Fatalf("unexpected pipeline query: %+v", byPipeline)
	}

	recent := store.GetRecent(3)
	if len(recent) != 3 || recent[0].Event != "B" {
		t.Fatalf("unexpected recent query: %+v", recent)
	}

	since := store.Query(Filter{Since: recent[1].Sequence})
	if len(since) != 1 || since[0].Event != "D" {
		t.Fatalf("unexpected since query: %+v", since)
	}

	if got := store.GetByPipeline("", 5); got != nil {
		t.Fatalf("expected nil for empty pipeline id, got %+v", got)
	}
}

func TestSinksAndObserverReceiveRecordsInOrder(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(Options{Clock: fixedClock(at)})
	sink := &recordingSink{}
	observer := &recordingObserver{}
	store.AddSink(sink)
	store.SetObserver(observer)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Record("worker", fmt.Sprintf("E%d", i), nil)
		}(i)
	}
	wg.Wait()

	if len(sink.records) != 50 {
		t.Fatalf("expected 50 sink records, got %d", len(sink.records))
	}
	for i := 1; i < len(sink.records); i++ {
		if sink.records[i].Sequence != sink.records[i-1].Sequence+1 {
			t.Fatalf("sink order broken at %d: %d after %d", i, sink.records[i].Sequence, sink.records[i-1].Sequence)
		}
	}
	buffered := store.GetRecent(0)
	for i, record := range buffered {
		if record.Sequence != sink.records[i].Sequence {
			t.Fatalf("buffer and sink disagree at %d", i)
		}
	}
	if len(observer.seen) != 50 || !observer.seen[0].at.Equal(at) {
		t.Fatalf("unexpected observations: %d", len(observer.seen))
	}
}

func TestWarnRecordsLikeRecord(t *testing.T) {
	store := NewStore(Options{})
	record := store.Warn("pipeline", "UNKNOWN_PIPELINE", map[string]any{PipelineIDKey: "ghost"}, "update ignored", "check the id")
	if record.Event != "UNKNOWN_PIPELINE" || record.PipelineID != "ghost" {
		t.Fatalf("unexpected warning record: %+v", record)
	}
	if store.Len() != 1 {
		t.Fatalf("expected warning to be buffered")
	}
}
