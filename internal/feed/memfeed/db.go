package memfeed

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/ir"
)

// DB is an in-memory hierarchical store. Safe for concurrent use.
type DB struct {
	mu        sync.Mutex
	nodes     map[string]*node
	listeners []*listener // registration order
	nextID    feed.ListenerID
}

type node struct {
	children map[string]ir.Value
	held     bool
	err      error
	// heldFrom is the children as of Hold. Listeners that were already
	// delivered get the diff from it on Release.
	heldFrom map[string]ir.Value
}

type listener struct {
	id      feed.ListenerID
	kind    feed.EventKind
	query   *Query
	child   feed.ChildCallback
	onValue func(ir.Snapshot)
	onError func(error)
	// fresh marks listeners registered while their path is held; they get
	// a full replay on Release instead of a diff.
	fresh bool
}

// New creates an empty DB.
func New() *DB {
	return &DB{nodes: make(map[string]*node)}
}

// Ref returns a key-ordered query on the children of path.
func (db *DB) Ref(path string) *Query {
	return &Query{db: db, path: normalizePath(path), order: orderByKey}
}

// Set writes value under path/key. A nil or Null value removes the child.
func (db *DB) Set(path, key string, value ir.Value) error {
	if key == "" || strings.Contains(key, "/") {
		return fmt.Errorf("memfeed: invalid child key %q", key)
	}
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	n := db.nodeLocked(path)
	if n.err != nil {
		return fmt.Errorf("memfeed: write %s: %w", path, n.err)
	}
	db.mutateLocked(path, n, func(children map[string]ir.Value) {
		if _, isNull := value.(ir.Null); value == nil || isNull {
			delete(children, key)
			return
		}
		children[key] = value
	})
	return nil
}

// Update writes several children of path in one change, so listeners see the
// combined diff. Nil or Null values remove children.
func (db *DB) Update(path string, values map[string]ir.Value) error {
	for key := range values {
		if key == "" || strings.Contains(key, "/") {
			return fmt.Errorf("memfeed: invalid child key %q", key)
		}
	}
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	n := db.nodeLocked(path)
	if n.err != nil {
		return fmt.Errorf("memfeed: write %s: %w", path, n.err)
	}
	db.mutateLocked(path, n, func(children map[string]ir.Value) {
		for key, value := range values {
			if _, isNull := value.(ir.Null); value == nil || isNull {
				delete(children, key)
				continue
			}
			children[key] = value
		}
	})
	return nil
}

// Remove deletes path/key. Removing a missing child is not an error.
func (db *DB) Remove(path, key string) error {
	return db.Set(path, key, nil)
}

// Children returns the current children of path ordered by key.
func (db *DB) Children(path string) []ir.Snapshot {
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	n, ok := db.nodes[path]
	if !ok {
		return nil
	}
	return db.Ref(path).window(n.children)
}

// Hold marks path as not yet loaded. Pending Once(Value) listeners wait,
// new child_added listeners get no replay and writes are not delivered until
// Release.
func (db *DB) Hold(path string) {
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	n := db.nodeLocked(path)
	if n.held {
		return
	}
	n.held = true
	n.heldFrom = maps.Clone(n.children)
}

// Release marks path as loaded. Listeners registered before Hold receive the
// diff of everything written while held; child_added listeners registered
// while held receive the current window. Pending Once(Value) listeners fire
// last.
func (db *DB) Release(path string) {
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	n := db.nodeLocked(path)
	if !n.held {
		return
	}
	n.held = false
	before := n.heldFrom
	n.heldFrom = nil

	active := db.listenersLocked(path)
	var settled []*listener
	for _, l := range active {
		if !l.fresh {
			settled = append(settled, l)
		}
	}
	deliverDiff(settled, before, n.children)

	for _, l := range active {
		if l.fresh && l.kind == feed.ChildAdded && l.child != nil {
			deliver(l, replay(l.query.window(n.children)))
		}
		l.fresh = false
	}
	for _, l := range db.listenersLocked(path) {
		if l.onValue != nil {
			db.removeLocked(l.id)
			l.onValue(l.query.valueOf(l.query.window(n.children)))
		}
	}
}

// Fail cancels path with err: pending Once listeners receive err, all
// listeners on the path are detached, and later registrations fail at once.
func (db *DB) Fail(path string, err error) {
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	n := db.nodeLocked(path)
	n.err = err
	n.held = false
	n.heldFrom = nil
	for _, l := range db.listenersLocked(path) {
		db.removeLocked(l.id)
		if l.onError != nil {
			l.onError(err)
		}
	}
}

// Recover clears a failure set by Fail.
func (db *DB) Recover(path string) {
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()
	db.nodeLocked(path).err = nil
}

// ListenerCount returns the number of live registrations on path.
func (db *DB) ListenerCount(path string) int {
	path = normalizePath(path)

	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.listenersLocked(path))
}

func (db *DB) on(q *Query, kind feed.EventKind, cb feed.ChildCallback) feed.ListenerID {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextID++
	id := db.nextID

	n := db.nodeLocked(q.path)
	if n.err != nil || cb == nil || kind == feed.Value {
		// Cancelled paths and unsupported kinds accept no listeners; the id
		// is still unique so Off stays harmless.
		return id
	}

	l := &listener{id: id, kind: kind, query: q, child: cb, fresh: n.held}
	db.listeners = append(db.listeners, l)
	if kind == feed.ChildAdded && !n.held {
		deliver(l, replay(q.window(n.children)))
	}
	return id
}

func (db *DB) once(q *Query, kind feed.EventKind, onValue func(ir.Snapshot), onError func(error)) feed.ListenerID {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.nextID++
	id := db.nextID

	if kind != feed.Value {
		if onError != nil {
			onError(fmt.Errorf("memfeed: once %s is not supported", kind))
		}
		return id
	}

	n := db.nodeLocked(q.path)
	switch {
	case n.err != nil:
		if onError != nil {
			onError(n.err)
		}
	case n.held:
		if onValue == nil {
			onValue = func(ir.Snapshot) {}
		}
		db.listeners = append(db.listeners, &listener{id: id, kind: kind, query: q, onValue: onValue, onError: onError, fresh: true})
	default:
		if onValue != nil {
			onValue(q.valueOf(q.window(n.children)))
		}
	}
	return id
}

func (db *DB) off(id feed.ListenerID) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.removeLocked(id)
}

// mutateLocked applies fn to path's children and delivers the resulting
// diff to every query registered on path.
func (db *DB) mutateLocked(path string, n *node, fn func(map[string]ir.Value)) {
	if n.held {
		fn(n.children)
		return
	}
	before := maps.Clone(n.children)
	fn(n.children)
	deliverDiff(db.listenersLocked(path), before, n.children)
}

// deliverDiff sends each child listener the events that turn its query's
// window over before into the window over after. Events go out change by
// change, each to the matching listeners in registration order.
func deliverDiff(active []*listener, before, after map[string]ir.Value) {
	var queries []*Query
	seen := make(map[string]bool)
	for _, l := range active {
		if l.child == nil {
			continue
		}
		if id := l.query.String(); !seen[id] {
			seen[id] = true
			queries = append(queries, l.query)
		}
	}

	for _, q := range queries {
		id := q.String()
		for _, c := range diffWindows(q.window(before), q.window(after)) {
			for _, l := range active {
				if l.kind == c.kind && l.child != nil && l.query.String() == id {
					snap := c.snap
					l.child(&snap, c.prevKey)
				}
			}
		}
	}
}

func (db *DB) nodeLocked(path string) *node {
	n, ok := db.nodes[path]
	if !ok {
		n = &node{children: make(map[string]ir.Value)}
		db.nodes[path] = n
	}
	return n
}

// listenersLocked returns a snapshot of path's listeners in registration order.
func (db *DB) listenersLocked(path string) []*listener {
	var out []*listener
	for _, l := range db.listeners {
		if l.query.path == path {
			out = append(out, l)
		}
	}
	return out
}

func (db *DB) removeLocked(id feed.ListenerID) {
	for i, l := range db.listeners {
		if l.id == id {
			db.listeners = append(db.listeners[:i:i], db.listeners[i+1:]...)
			return
		}
	}
}

func deliver(l *listener, changes []change) {
	for _, c := range changes {
		snap := c.snap
		l.child(&snap, c.prevKey)
	}
}

func normalizePath(path string) string {
	return strings.Trim(path, "/")
}
