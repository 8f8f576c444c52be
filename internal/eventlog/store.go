package eventlog

import (
	"log/slog"
	"sync"
	"time"

	"pipewatch/internal/logging"
)

// Sink receives every record in append order. Implementations must not block.
type Sink interface {
	Append(Record)
}

// Observer is notified after each record so component status can track the
// most recent activity.
type Observer interface {
	Observe(component, event string, at time.Time)
}

// Options configures a Store.
type Options struct {
	Capacity int
	Logger   *slog.Logger
	Clock    func() time.Time
}

// Store is the bounded, ordered event log.
type Store struct {
	mu       sync.Mutex
	capacity int
	buffer   []Record
	nextSeq  uint64
	sinks    []Sink
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore constructs an empty store.
func NewStore(opts Options) *Store {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Store{
		capacity: capacity,
		buffer:   make([]Record, 0, capacity),
		logger:   logging.NewComponentLogger(opts.Logger, "eventlog"),
		now:      now,
	}
}

// AddSink wires an additional sink that receives every subsequent record.
func (s *Store) AddSink(sink Sink) {
	if s == nil || sink == nil {
		return
	}
	s.mu.Lock()
	s.sinks = append(s.sinks, sink)
	s.mu.Unlock()
}

// SetObserver installs the component status observer.
func (s *Store) SetObserver(observer Observer) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.observer = observer
	s.mu.Unlock()
}

// Record appends an informational event.
func (s *Store) Record(component, event string, data map[string]any) Record {
	return s.append(slog.LevelInfo, component, event, data, nil)
}

// Warn appends a warning event. The diagnostic mirror carries the supplied
// impact and hint so operators see why the call was ignored.
func (s *Store) Warn(component, event string, data map[string]any, impact, hint string) Record {
	return s.append(slog.LevelWarn, component, event, data, []logging.Attr{
		logging.String(logging.FieldImpact, impact),
		logging.String(logging.FieldErrorHint, hint),
	})
}

func (s *Store) append(level slog.Level, component, event string, data map[string]any, extra []logging.Attr) Record {
	if s == nil {
		return Record{}
	}
	record := Record{
		Component:  component,
		Event:      event,
		Data:       cloneData(data),
		PipelineID: pipelineIDFrom(data),
	}

	s.mu.Lock()
	s.nextSeq++
	record.Sequence = s.nextSeq
	record.Timestamp = s.now().UTC()
	if len(s.buffer) == s.capacity {
		copy(s.buffer, s.buffer[1:])
		s.buffer = s.buffer[:s.capacity-1]
	}
	s.buffer = append(s.buffer, record)
	for _, sink := range s.sinks {
		sink.Append(record)
	}
	observer := s.observer
	s.mu.Unlock()

	if observer != nil {
		observer.Observe(component, event, record.Timestamp)
	}
	s.mirror(level, record, extra)
	return record
}

func (s *Store) mirror(level slog.Level, record Record, extra []logging.Attr) {
	attrs := []logging.Attr{
		logging.String(logging.FieldComponent, record.Component),
		logging.String(logging.FieldPipelineID, record.PipelineID),
		logging.Uint64("seq", record.Sequence),
	}
	if len(record.Data) > 0 {
		attrs = append(attrs, logging.Any("data", record.Data))
	}
	if level >= slog.LevelWarn {
		logging.WarnWithContext(s.logger, record.Event, "tracker_warning", append(attrs, extra...)...)
		return
	}
	s.logger.Info(record.Event, logging.Args(append(attrs, logging.String(logging.FieldEventType, "tracker_event"))...)...)
}

// GetRecent returns up to limit of the newest records, oldest first.
func (s *Store) GetRecent(limit int) []Record {
	return s.Query(Filter{Limit: limit})
}

// GetByComponent returns up to limit of the newest records for component.
func (s *Store) GetByComponent(component string, limit int) []Record {
	if component == "" {
		return nil
	}
	return s.Query(Filter{Component: component, Limit: limit})
}

// GetByPipeline returns up to limit of the newest records for a pipeline run.
func (s *Store) GetByPipeline(id string, limit int) []Record {
	if id == "" {
		return nil
	}
	return s.Query(Filter{PipelineID: id, Limit: limit})
}

// Query returns buffered records matching filter, most-recent-last.
func (s *Store) Query(filter Filter) []Record {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Record, 0, len(s.buffer))
	for _, record := range s.buffer {
		if filter.matches(record) {
			matched = append(matched, record)
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	return matched
}

// Len reports how many records are currently buffered.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Capacity reports the buffer bound.
func (s *Store) Capacity() int {
	if s == nil {
		return 0
	}
	return s.capacity
}

// LastSequence reports the sequence of the newest record ever appended.
func (s *Store) LastSequence() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSeq
}
