package telemetry

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
	"github.com/kilianp07/batsim/infra/logger"
)

// DefaultAsyncQueue is the number of pending writes an AsyncSink holds.
const DefaultAsyncQueue = 256

// ErrQueueFull is returned when an AsyncSink has no room for another write.
var ErrQueueFull = errors.New("telemetry queue full, record dropped")

// AsyncSink writes to a network sink from a background goroutine so broker
// retries or slow HTTP writes never hold up a step. Write errors of the
// wrapped sink are logged.
type AsyncSink struct {
	inner coretelemetry.Sink
	log   logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan func() error
	done   chan struct{}

	dropped atomic.Uint64
}

var _ coretelemetry.DiagnosticRecorder = (*AsyncSink)(nil)

// NewAsyncSink starts the writer goroutine. size <= 0 selects
// DefaultAsyncQueue.
func NewAsyncSink(inner coretelemetry.Sink, size int, log logger.Logger) *AsyncSink {
	if size <= 0 {
		size = DefaultAsyncQueue
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	s := &AsyncSink{
		inner: inner,
		log:   log,
		queue: make(chan func() error, size),
		done:  make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for write := range s.queue {
		if err := write(); err != nil {
			s.log.Errorf("async sink write: %v", err)
		}
	}
}

func (s *AsyncSink) enqueue(write func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("telemetry sink closed")
	}
	select {
	case s.queue <- write:
		return nil
	default:
		s.dropped.Add(1)
		return ErrQueueFull
	}
}

func (s *AsyncSink) RecordStep(rec coretelemetry.Record) error {
	return s.enqueue(func() error { return s.inner.RecordStep(rec) })
}

// RecordDiagnostic queues d when the wrapped sink records diagnostics.
func (s *AsyncSink) RecordDiagnostic(d coretelemetry.Diagnostic) error {
	dr, ok := s.inner.(coretelemetry.DiagnosticRecorder)
	if !ok {
		return nil
	}
	return s.enqueue(func() error { return dr.RecordDiagnostic(d) })
}

// Dropped returns the number of writes rejected because the queue was full.
func (s *AsyncSink) Dropped() uint64 { return s.dropped.Load() }

// Close writes out what is queued, then closes the wrapped sink.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	if n := s.dropped.Load(); n > 0 {
		s.log.Warnf("async sink dropped %d writes", n)
	}
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
