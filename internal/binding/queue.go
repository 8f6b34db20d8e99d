package binding

import (
	"sync"

	"github.com/roach88/livelist/internal/list"
)

type envelopeType int

const (
	// envelopeEvent carries a reducer event from a subscription.
	envelopeEvent envelopeType = iota + 1
	// envelopeBarrier is a Flush marker; the loop closes done when reached.
	envelopeBarrier
)

// envelope is one queue entry.
type envelope struct {
	typ   envelopeType
	token string
	event list.Event
	done  chan error
}

// eventQueue is an unbounded, thread-safe FIFO of envelopes.
//
// Unbounded so feed callbacks never block on a slow consumer. The signal
// channel (buffered, size 1) lets the Run loop wait with context awareness.
type eventQueue struct {
	mu     sync.Mutex
	items  []envelope
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		items:  make([]envelope, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, e)

	// Non-blocking: the size-1 buffer coalesces wakeups, not events.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front entry without blocking.
func (q *eventQueue) TryDequeue() (envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return envelope{}, false
	}
	e := q.items[0]
	// Clear the slot so the backing array does not pin snapshots.
	q.items[0] = envelope{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return e, true
}

// Wait returns a channel that signals when entries may be available.
// It is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued entries.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further Enqueue calls and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
