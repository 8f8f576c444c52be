package eventlog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"pipewatch/internal/logging"
)

// ErrSinkWrite wraps failures reported by a durable sink.
var ErrSinkWrite = errors.New("event sink write failed")

// DefaultQueueSize is the number of records buffered ahead of a slow writer.
const DefaultQueueSize = 1024

// Writer persists records synchronously. AsyncSink drives it from a single
// goroutine, so implementations need no locking of their own.
type Writer interface {
	Write(Record) error
	Close() error
}

// SinkStats reports records a sink could not persist.
type SinkStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// AsyncSink decouples a Writer from the recording path with a buffered
// channel. A full queue drops the record rather than blocking the caller.
type AsyncSink struct {
	name   string
	writer Writer
	queue  chan Record
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncSink starts a background writer for w.
func NewAsyncSink(name string, w Writer, queueSize int, logger *slog.Logger) *AsyncSink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &AsyncSink{
		name:   name,
		writer: w,
		queue:  make(chan Record, queueSize),
		done:   make(chan struct{}),
		logger: logging.NewComponentLogger(logger, "eventlog."+name),
	}
	go s.run()
	return s
}

// Append enqueues record without blocking.
func (s *AsyncSink) Append(record Record) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- record:
	default:
		n := s.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			logging.WarnWithContext(s.logger, "event sink queue full; record dropped", "event_sink_dropped",
				logging.String("sink", s.name),
				logging.Uint64("seq", record.Sequence),
				logging.Uint64("dropped_total", n),
				logging.String(logging.FieldImpact, "record missing from durable log"),
				logging.String(logging.FieldErrorHint, "increase tracker.archive_queue or check disk latency"),
			)
		}
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for record := range s.queue {
		if err := s.writer.Write(record); err != nil {
			n := s.failed.Add(1)
			logging.ErrorWithContext(s.logger, "event sink write failed", "event_sink_write_failed",
				logging.String("sink", s.name),
				logging.Uint64("seq", record.Sequence),
				logging.Uint64("failed_total", n),
				logging.Error(fmt.Errorf("%w: %w", ErrSinkWrite, err)),
				logging.String(logging.FieldErrorHint, "check disk space and permissions for the log directory"),
			)
			continue
		}
		s.written.Add(1)
	}
}

// Close drains queued records and closes the writer.
func (s *AsyncSink) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.queue)
		s.mu.Unlock()
		<-s.done
		err = s.writer.Close()
	})
	return err
}

// Stats returns write counters.
func (s *AsyncSink) Stats() SinkStats {
	if s == nil {
		return SinkStats{}
	}
	return SinkStats{
		Written: s.written.Load(),
		Dropped: s.dropped.Load(),
		Failed:  s.failed.Load(),
	}
}
