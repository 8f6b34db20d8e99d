package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/livelist/internal/binding"
)

// Recorder journals binding records without blocking the binding's loop.
//
// Record only appends to an unbounded in-memory queue; Run drains the queue
// in batches, one transaction per batch. Implements binding.Recorder.
//
// Thread-safety: Record and Close are safe from any goroutine. Run must be
// called from exactly one goroutine.
type Recorder struct {
	store  *Store
	logger *slog.Logger

	mu      sync.Mutex
	pending []binding.Record
	closed  bool
	dropped int
	signal  chan struct{}
}

// NewRecorder creates a recorder writing to s. A nil logger means
// slog.Default().
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		logger: logger,
		signal: make(chan struct{}, 1),
	}
}

// Record queues rec for writing. Records arriving after Close are counted
// and discarded.
func (r *Recorder) Record(rec binding.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.dropped++
		return
	}
	r.pending = append(r.pending, rec)

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Close stops accepting records. Run writes what is queued and returns.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	close(r.signal)
}

// Dropped returns how many records arrived after Close.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run writes queued records until Close has been called and the queue is
// empty, or ctx is cancelled. A failed batch is logged and skipped; Run
// returns the first write error once it finishes.
func (r *Recorder) Run(ctx context.Context) error {
	var firstErr error

	for {
		batch, closed := r.take()
		if len(batch) > 0 {
			if err := r.store.WriteEvents(ctx, batch); err != nil {
				r.logger.Error("journal write failed",
					"error", err,
					"records", len(batch),
					"first_seq", batch[0].Seq,
				)
				if firstErr == nil {
					firstErr = err
				}
			}
			continue
		}
		if closed {
			return firstErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.signal:
		}
	}
}

// take removes and returns every queued record.
func (r *Recorder) take() ([]binding.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch := r.pending
	r.pending = nil
	return batch, r.closed
}
