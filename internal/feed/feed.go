// Package feed defines the change-feed interface a binding consumes.
//
// A Query is a handle on an ordered set of children in a hierarchical data
// store. It delivers four continuous child events and one one-shot value
// signal. Queries must support value equality: Equal decides whether a
// binding has to rebind.
package feed

import (
	"fmt"

	"github.com/roach88/livelist/internal/ir"
)

// EventKind names a listener kind.
type EventKind int

const (
	// Value is the whole-query value. Used with Once as the initial-sync signal.
	Value EventKind = iota + 1
	// ChildAdded fires for each child entering the query, with its previous sibling key.
	ChildAdded
	// ChildChanged fires when a child's value changes without affecting order.
	ChildChanged
	// ChildMoved fires when a child's position changes, with its new previous sibling key.
	ChildMoved
	// ChildRemoved fires for each child leaving the query.
	ChildRemoved
)

// ChildKinds lists the four continuous child event kinds in registration order.
var ChildKinds = []EventKind{ChildAdded, ChildChanged, ChildMoved, ChildRemoved}

func (k EventKind) String() string {
	switch k {
	case Value:
		return "value"
	case ChildAdded:
		return "child_added"
	case ChildChanged:
		return "child_changed"
	case ChildMoved:
		return "child_moved"
	case ChildRemoved:
		return "child_removed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ChildCallback receives a child snapshot and, for ChildAdded and ChildMoved,
// the key of the preceding sibling ("" when the child is first). A nil snap
// is a malformed delivery.
type ChildCallback func(snap *ir.Snapshot, prevKey string)

// ListenerID identifies one registration on a Query.
type ListenerID uint64

// Query is the consumed change-feed interface.
//
// Implementations may invoke callbacks synchronously from On or Once, or
// later from any goroutine, but must deliver the events of one query one at
// a time. After Off returns, the listener receives no further callbacks.
type Query interface {
	// On registers a continuous listener for one of the four child kinds.
	On(kind EventKind, cb ChildCallback) ListenerID

	// Off detaches a listener registered with On or Once. Unknown ids are ignored.
	Off(kind EventKind, id ListenerID)

	// Once registers a one-shot listener. For Value, onValue receives the
	// whole query value once the initial data is loaded; onError receives
	// a failure instead. Off(Value, id) cancels a pending one-shot.
	Once(kind EventKind, onValue func(ir.Snapshot), onError func(error)) ListenerID

	// Equal reports whether other addresses the same data with the same
	// ordering and window.
	Equal(other Query) bool

	// String describes the query for logs.
	String() string
}
