package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// LoggerConfig configures the async audit logger.
type LoggerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// AsyncLogger queues events for a single writer goroutine. A batch is handed
// to the sink when it reaches BatchSize or when FlushInterval has passed since
// its first event, whichever comes first.
type AsyncLogger struct {
	queue   chan Event
	sink    Sink
	cfg     LoggerConfig
	now     func() time.Time
	dropped atomic.Int64

	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewAsyncLogger creates and starts an async audit logger.
func NewAsyncLogger(sink Sink, cfg LoggerConfig) *AsyncLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4096
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}

	l := &AsyncLogger{
		queue:   make(chan Event, cfg.BufferSize),
		sink:    sink,
		cfg:     cfg,
		now:     time.Now,
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

// Log enqueues an event without blocking. It is counted as dropped when the
// queue is full and ignored once Close has been called.
func (l *AsyncLogger) Log(_ context.Context, event Event) {
	select {
	case <-l.closing:
		return
	default:
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.now()
	}

	select {
	case l.queue <- event:
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns the number of events discarded because the queue was full.
func (l *AsyncLogger) Dropped() int64 {
	return l.dropped.Load()
}

// Close writes everything still queued and waits for the writer to exit.
// It is safe to call more than once.
func (l *AsyncLogger) Close() error {
	l.closeOnce.Do(func() { close(l.closing) })
	<-l.stopped
	return nil
}

func (l *AsyncLogger) run() {
	defer close(l.stopped)

	batch := make([]Event, 0, l.cfg.BatchSize)
	deadline := time.NewTimer(l.cfg.FlushInterval)
	deadline.Stop()
	pending := false
	var reported int64

	flush := func() {
		if pending {
			deadline.Stop()
			pending = false
		}
		if len(batch) > 0 {
			l.write(batch)
			batch = batch[:0]
		}
		if n := l.dropped.Load(); n > reported {
			slog.Warn("audit queue full, events dropped", "dropped", n-reported, "dropped_total", n)
			reported = n
		}
	}

	for {
		select {
		case e := <-l.queue:
			batch = append(batch, e)
			if len(batch) >= l.cfg.BatchSize {
				flush()
			} else if !pending {
				deadline.Reset(l.cfg.FlushInterval)
				pending = true
			}

		case <-deadline.C:
			pending = false
			flush()

		case <-l.closing:
			for {
				select {
				case e := <-l.queue:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *AsyncLogger) write(batch []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.sink.Write(ctx, batch); err != nil {
		slog.Error("audit write failed", "error", err, "count", len(batch))
	}
}
