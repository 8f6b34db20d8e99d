package memfeed

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/ir"
)

type orderKind int

const (
	orderByKey orderKind = iota
	orderByChild
)

// Query is an immutable query on the children of one path. Builder methods
// return modified copies.
type Query struct {
	db         *DB
	path       string
	order      orderKind
	field      string
	limitFirst int
	limitLast  int
}

var _ feed.Query = (*Query)(nil)

// Path returns the normalized path the query reads.
func (q *Query) Path() string {
	return q.path
}

// OrderByKey orders children by key.
func (q *Query) OrderByKey() *Query {
	c := *q
	c.order = orderByKey
	c.field = ""
	return &c
}

// OrderByChild orders children by the value at a child path, ties broken by key.
func (q *Query) OrderByChild(field string) *Query {
	c := *q
	c.order = orderByChild
	c.field = strings.Trim(field, "/")
	return &c
}

// LimitToFirst keeps the first n ordered children. n <= 0 removes the limit.
func (q *Query) LimitToFirst(n int) *Query {
	c := *q
	c.limitFirst = max(n, 0)
	c.limitLast = 0
	return &c
}

// LimitToLast keeps the last n ordered children. n <= 0 removes the limit.
func (q *Query) LimitToLast(n int) *Query {
	c := *q
	c.limitLast = max(n, 0)
	c.limitFirst = 0
	return &c
}

// Equal implements feed.Query.
func (q *Query) Equal(other feed.Query) bool {
	o, ok := other.(*Query)
	if !ok || o == nil || q == nil {
		return false
	}
	return q.db == o.db &&
		q.path == o.path &&
		q.order == o.order &&
		q.field == o.field &&
		q.limitFirst == o.limitFirst &&
		q.limitLast == o.limitLast
}

// String implements feed.Query.
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("memfeed:/")
	b.WriteString(q.path)
	if q.order == orderByChild {
		fmt.Fprintf(&b, "?orderByChild=%s", q.field)
	} else {
		b.WriteString("?orderByKey")
	}
	if q.limitFirst > 0 {
		fmt.Fprintf(&b, "&limitToFirst=%d", q.limitFirst)
	}
	if q.limitLast > 0 {
		fmt.Fprintf(&b, "&limitToLast=%d", q.limitLast)
	}
	return b.String()
}

// On implements feed.Query.
func (q *Query) On(kind feed.EventKind, cb feed.ChildCallback) feed.ListenerID {
	return q.db.on(q, kind, cb)
}

// Off implements feed.Query.
func (q *Query) Off(kind feed.EventKind, id feed.ListenerID) {
	q.db.off(id)
}

// Once implements feed.Query. Only feed.Value is supported; other kinds
// report an error through onError.
func (q *Query) Once(kind feed.EventKind, onValue func(ir.Snapshot), onError func(error)) feed.ListenerID {
	return q.db.once(q, kind, onValue, onError)
}

// window returns the ordered, limited children visible to q.
func (q *Query) window(children map[string]ir.Value) []ir.Snapshot {
	out := make([]ir.Snapshot, 0, len(children))
	for k, v := range children {
		out = append(out, ir.NewSnapshot(k, v))
	}
	slices.SortFunc(out, func(a, b ir.Snapshot) int {
		if q.order == orderByChild {
			if c := ir.Compare(a.Child(q.field), b.Child(q.field)); c != 0 {
				return c
			}
		}
		return ir.Compare(ir.String(a.Key), ir.String(b.Key))
	})
	switch {
	case q.limitFirst > 0 && len(out) > q.limitFirst:
		out = out[:q.limitFirst]
	case q.limitLast > 0 && len(out) > q.limitLast:
		out = out[len(out)-q.limitLast:]
	}
	return out
}

// valueOf returns the query's whole value: an object of the window's children.
func (q *Query) valueOf(window []ir.Snapshot) ir.Snapshot {
	obj := make(ir.Object, len(window))
	for _, s := range window {
		obj[s.Key] = s.Value
	}
	return ir.NewSnapshot(lastSegment(q.path), obj)
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}
