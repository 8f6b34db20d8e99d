package list

import (
	"fmt"

	"github.com/roach88/livelist/internal/ir"
)

// EventKind distinguishes reducer events.
type EventKind int

const (
	// EventAdded inserts a child after PrevKey.
	EventAdded EventKind = iota + 1
	// EventChanged replaces the record of an existing child.
	EventChanged
	// EventMoved relocates a child to just after PrevKey.
	EventMoved
	// EventRemoved deletes a child.
	EventRemoved
	// EventInitialSync marks the end of the initial full sync.
	EventInitialSync
	// EventError records a feed failure.
	EventError
	// EventReset returns to the initial loading state.
	EventReset
)

var eventKindNames = map[EventKind]string{
	EventAdded:       "added",
	EventChanged:     "changed",
	EventMoved:       "moved",
	EventRemoved:     "removed",
	EventInitialSync: "initial_sync",
	EventError:       "error",
	EventReset:       "reset",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind is the inverse of EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	for k, name := range eventKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Event is one reducer input.
//
// Snapshot is required for the four child kinds; nil or key-less snapshots
// make the event a no-op. PrevKey is meaningful for Added and Moved only;
// empty means "no previous sibling". Err is meaningful for EventError only.
type Event struct {
	Kind     EventKind
	Snapshot *ir.Snapshot
	PrevKey  string
	Err      error
}

// Key returns the event's child key, or "" when there is none.
func (e Event) Key() string {
	if e.Snapshot == nil {
		return ""
	}
	return e.Snapshot.Key
}

// Added builds an EventAdded.
func Added(snap ir.Snapshot, prevKey string) Event {
	return Event{Kind: EventAdded, Snapshot: &snap, PrevKey: prevKey}
}

// Changed builds an EventChanged.
func Changed(snap ir.Snapshot) Event {
	return Event{Kind: EventChanged, Snapshot: &snap}
}

// Moved builds an EventMoved.
func Moved(snap ir.Snapshot, prevKey string) Event {
	return Event{Kind: EventMoved, Snapshot: &snap, PrevKey: prevKey}
}

// Removed builds an EventRemoved.
func Removed(snap ir.Snapshot) Event {
	return Event{Kind: EventRemoved, Snapshot: &snap}
}

// InitialSync builds an EventInitialSync.
func InitialSync() Event {
	return Event{Kind: EventInitialSync}
}

// Failed builds an EventError.
func Failed(err error) Event {
	return Event{Kind: EventError, Err: err}
}

// Reset builds an EventReset.
func Reset() Event {
	return Event{Kind: EventReset}
}
