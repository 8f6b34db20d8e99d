package list

import "github.com/roach88/livelist/internal/ir"

// State is the reducer state behind one subscription.
type State struct {
	// Err is the last feed failure. It never clears Collection.
	Err error
	// Loading is true until the initial sync completes or fails.
	Loading bool
	// Collection is the current ordered list.
	Collection Collection
}

// Initial returns the state of a fresh subscription: loading, no error,
// empty collection.
func Initial() State {
	return State{Loading: true}
}

// Apply computes the next collection for a child event. Non-child events and
// malformed child events return c unchanged.
func Apply(c Collection, ev Event) Collection {
	if ev.Snapshot == nil || !ev.Snapshot.Valid() {
		return c
	}
	switch ev.Kind {
	case EventAdded:
		// A duplicate add relocates the key so keys stay unique.
		return addChild(removeChild(c, ev.Snapshot.Key), *ev.Snapshot, ev.PrevKey)
	case EventChanged:
		return changeChild(c, *ev.Snapshot)
	case EventMoved:
		return addChild(removeChild(c, ev.Snapshot.Key), *ev.Snapshot, ev.PrevKey)
	case EventRemoved:
		return removeChild(c, ev.Snapshot.Key)
	}
	return c
}

// Reduce computes the next state for any event.
func Reduce(s State, ev Event) State {
	switch ev.Kind {
	case EventAdded, EventChanged, EventMoved, EventRemoved:
		s.Collection = Apply(s.Collection, ev)
		return s
	case EventInitialSync:
		s.Loading = false
		return s
	case EventError:
		s.Err = ev.Err
		s.Loading = false
		return s
	case EventReset:
		return Initial()
	}
	return s
}

// addChild inserts snap immediately after prevKey. An empty or unknown
// prevKey inserts at the front.
func addChild(c Collection, snap ir.Snapshot, prevKey string) Collection {
	if prevKey == "" {
		return c.insertAt(0, snap)
	}
	return c.insertAt(c.IndexOf(prevKey)+1, snap)
}

// changeChild replaces the record for snap.Key. Unknown keys are ignored.
func changeChild(c Collection, snap ir.Snapshot) Collection {
	i := c.IndexOf(snap.Key)
	if i < 0 {
		return c
	}
	return c.replaceAt(i, snap)
}

// removeChild deletes key. Unknown keys are ignored.
func removeChild(c Collection, key string) Collection {
	i := c.IndexOf(key)
	if i < 0 {
		return c
	}
	return c.deleteAt(i)
}
