// Package observe provides an observable value cell.
package observe

import "sync"

// Cell holds a value and notifies subscribers on every Set.
//
// Subscribers run synchronously on the goroutine calling Set, in subscription
// order, after the new value is visible to Get. Set calls are serialized, so
// subscribers observe values in the order they were set and never
// concurrently with each other.
type Cell[T any] struct {
	setMu sync.Mutex // serializes Set, including notification

	mu      sync.RWMutex
	value   T
	version int64
	subs    []subscriber[T]
	nextID  int
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Version returns how many times Set has been called.
func (c *Cell[T]) Version() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Set stores v and notifies subscribers.
// Subscribers must not call Set on the same cell.
func (c *Cell[T]) Set(v T) {
	c.setMu.Lock()
	defer c.setMu.Unlock()

	c.mu.Lock()
	c.value = v
	c.version++
	subs := c.subs
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn for future Sets and returns a function that removes
// it. The returned function is idempotent.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	// Copy on write: Set iterates the slice it read without holding mu.
	subs := make([]subscriber[T], len(c.subs), len(c.subs)+1)
	copy(subs, c.subs)
	c.subs = append(subs, subscriber[T]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				next := make([]subscriber[T], 0, len(c.subs)-1)
				next = append(next, c.subs[:i]...)
				c.subs = append(next, c.subs[i+1:]...)
				return
			}
		}
	}
}
