package binding

import "sync/atomic"

// Clock is a monotonic logical clock. Every published snapshot is stamped
// with Next(), so Seq orders snapshots without wall-clock time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
// Used to continue numbering after a replayed journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
