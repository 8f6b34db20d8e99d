package binding

import (
	"sync/atomic"

	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
)

// dispatchFunc hands a translated feed delivery to the queue.
type dispatchFunc func(token string, ev list.Event)

// subscription owns every registration made for one bound query: four
// continuous child listeners and one one-shot value listener. Only the
// Binding opens and closes it.
type subscription struct {
	query feed.Query
	token string

	childIDs [4]feed.ListenerID // indexed like feed.ChildKinds
	onceID   feed.ListenerID
	onceDone atomic.Bool
}

// openSubscription registers all listeners for q: added, changed, moved,
// removed, then the one-shot value listener. Feeds that deliver
// synchronously from On and Once therefore report the initial children
// before the initial sync completes.
func openSubscription(q feed.Query, token string, dispatch dispatchFunc) *subscription {
	s := &subscription{query: q, token: token}

	for i, kind := range feed.ChildKinds {
		s.childIDs[i] = q.On(kind, childHandler(kind, token, dispatch))
	}

	s.onceID = q.Once(feed.Value,
		func(ir.Snapshot) {
			s.onceDone.Store(true)
			dispatch(token, list.InitialSync())
		},
		func(err error) {
			s.onceDone.Store(true)
			dispatch(token, list.Failed(err))
		},
	)
	return s
}

// close detaches every listener, including the one-shot if it has not fired.
func (s *subscription) close() {
	for i, kind := range feed.ChildKinds {
		s.query.Off(kind, s.childIDs[i])
	}
	if !s.onceDone.Load() {
		s.query.Off(feed.Value, s.onceID)
	}
}

// childHandler translates one child listener kind into reducer events.
func childHandler(kind feed.EventKind, token string, dispatch dispatchFunc) feed.ChildCallback {
	var evKind list.EventKind
	switch kind {
	case feed.ChildAdded:
		evKind = list.EventAdded
	case feed.ChildChanged:
		evKind = list.EventChanged
	case feed.ChildMoved:
		evKind = list.EventMoved
	case feed.ChildRemoved:
		evKind = list.EventRemoved
	}

	return func(snap *ir.Snapshot, prevKey string) {
		ev := list.Event{Kind: evKind}
		if snap != nil {
			// Copy: the feed may reuse its snapshot after the callback returns.
			c := *snap
			ev.Snapshot = &c
		}
		if evKind == list.EventAdded || evKind == list.EventMoved {
			ev.PrevKey = prevKey
		}
		dispatch(token, ev)
	}
}
