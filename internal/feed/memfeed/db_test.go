package memfeed

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
)

// mirror is a listener set that folds every delivered event into a list.
type mirror struct {
	coll   list.Collection
	events []string
	ids    map[feed.EventKind]feed.ListenerID
}

func attach(q feed.Query) *mirror {
	m := &mirror{ids: make(map[feed.EventKind]feed.ListenerID)}
	for _, kind := range feed.ChildKinds {
		kind := kind
		m.ids[kind] = q.On(kind, func(snap *ir.Snapshot, prevKey string) {
			m.events = append(m.events, fmt.Sprintf("%s:%s:%s", kind, snap.Key, prevKey))
			m.coll = list.Apply(m.coll, toEvent(kind, *snap, prevKey))
		})
	}
	return m
}

func (m *mirror) detach(q feed.Query) {
	for kind, id := range m.ids {
		q.Off(kind, id)
	}
}

func toEvent(kind feed.EventKind, snap ir.Snapshot, prevKey string) list.Event {
	switch kind {
	case feed.ChildAdded:
		return list.Added(snap, prevKey)
	case feed.ChildChanged:
		return list.Changed(snap)
	case feed.ChildMoved:
		return list.Moved(snap, prevKey)
	default:
		return list.Removed(snap)
	}
}

func msg(ts int64) ir.Value {
	return ir.Obj(ir.O("ts", ir.Int(ts)))
}

func keysOf(snaps []ir.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Key
	}
	return out
}

func TestOn_ReplaysExistingChildren(t *testing.T) {
	db := New()
	require.NoError(t, db.Set("rooms/lobby", "b", msg(2)))
	require.NoError(t, db.Set("rooms/lobby", "a", msg(1)))
	require.NoError(t, db.Set("rooms/lobby", "c", msg(3)))

	m := attach(db.Ref("rooms/lobby"))

	assert.Equal(t, []string{"a", "b", "c"}, m.coll.Keys())
	assert.Equal(t, []string{"child_added:a:", "child_added:b:a", "child_added:c:b"}, m.events)
}

func TestSet_DeliversAddChangeRemove(t *testing.T) {
	db := New()
	q := db.Ref("/rooms/lobby/")
	m := attach(q)

	require.NoError(t, db.Set("rooms/lobby", "b", msg(2)))
	require.NoError(t, db.Set("rooms/lobby", "a", msg(1)))
	require.NoError(t, db.Set("rooms/lobby", "a", msg(5)))
	require.NoError(t, db.Remove("rooms/lobby", "b"))

	assert.Equal(t, []string{
		"child_added:b:",
		"child_added:a:",
		"child_changed:a:",
		"child_removed:b:",
	}, m.events)
	assert.Equal(t, []string{"a"}, m.coll.Keys())
}

func TestOrderByChild_EmitsMoves(t *testing.T) {
	db := New()
	for i, k := range []string{"x", "y", "z"} {
		require.NoError(t, db.Set("p", k, msg(int64(i))))
	}
	m := attach(db.Ref("p").OrderByChild("ts"))
	require.Equal(t, []string{"x", "y", "z"}, m.coll.Keys())

	require.NoError(t, db.Set("p", "x", msg(10)))

	assert.Equal(t, []string{"y", "z", "x"}, m.coll.Keys())
	assert.Contains(t, m.events, "child_changed:x:")
	assert.Contains(t, m.events, "child_moved:x:z")
}

func TestLimitToLast_WindowShift(t *testing.T) {
	db := New()
	for i := 1; i <= 3; i++ {
		require.NoError(t, db.Set("chat", fmt.Sprintf("m%d", i), msg(int64(i))))
	}
	q := db.Ref("chat").OrderByChild("ts").LimitToLast(2)
	m := attach(q)
	require.Equal(t, []string{"m2", "m3"}, m.coll.Keys())

	require.NoError(t, db.Set("chat", "m4", msg(4)))

	assert.Equal(t, []string{"m3", "m4"}, m.coll.Keys())
	assert.Equal(t, []string{"m3", "m4"}, keysOf(q.window(db.nodes["chat"].children)))
}

func TestLimitToFirst(t *testing.T) {
	db := New()
	for _, k := range []string{"d", "b", "c"} {
		require.NoError(t, db.Set("p", k, ir.Bool(true)))
	}
	m := attach(db.Ref("p").LimitToFirst(2))
	assert.Equal(t, []string{"b", "c"}, m.coll.Keys())

	require.NoError(t, db.Set("p", "a", ir.Bool(true)))
	assert.Equal(t, []string{"a", "b"}, m.coll.Keys())
}

func TestDiffReplay_ReproducesWindow(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	queries := func(db *DB) []*Query {
		return []*Query{
			db.Ref("p"),
			db.Ref("p").OrderByChild("ts"),
			db.Ref("p").OrderByChild("ts").LimitToLast(4),
			db.Ref("p").LimitToFirst(3),
		}
	}

	db := New()
	qs := queries(db)
	mirrors := make([]*mirror, len(qs))
	for i, q := range qs {
		mirrors[i] = attach(q)
	}

	for step := 0; step < 300; step++ {
		key := fmt.Sprintf("k%d", rng.Intn(10))
		if rng.Intn(4) == 0 {
			require.NoError(t, db.Remove("p", key))
		} else {
			require.NoError(t, db.Set("p", key, msg(int64(rng.Intn(6)))))
		}

		for i, q := range qs {
			want := list.FromSnapshots(q.window(db.nodes["p"].children)...)
			require.True(t, want.Equal(mirrors[i].coll),
				"step %d query %s: want %v got %v", step, q, want.Keys(), mirrors[i].coll.Keys())
		}
	}
}

func TestUpdate_SingleDiff(t *testing.T) {
	db := New()
	require.NoError(t, db.Set("p", "a", msg(1)))
	m := attach(db.Ref("p"))

	require.NoError(t, db.Update("p", map[string]ir.Value{
		"a": nil,
		"b": msg(2),
	}))

	assert.Equal(t, []string{"b"}, m.coll.Keys())
	assert.Equal(t, []string{"child_added:a:", "child_removed:a:", "child_added:b:"}, m.events)
}

func TestSet_InvalidKey(t *testing.T) {
	db := New()
	assert.Error(t, db.Set("p", "", msg(1)))
	assert.Error(t, db.Set("p", "a/b", msg(1)))
	assert.Error(t, db.Update("p", map[string]ir.Value{"": msg(1)}))
}

func TestOff_StopsDelivery(t *testing.T) {
	db := New()
	q := db.Ref("p")
	m := attach(q)
	require.Equal(t, 4, db.ListenerCount("p"))

	m.detach(q)
	require.NoError(t, db.Set("p", "a", msg(1)))

	assert.Empty(t, m.events)
	assert.Equal(t, 0, db.ListenerCount("p"))
}

func TestOnce_FiresImmediatelyWithWindow(t *testing.T) {
	db := New()
	require.NoError(t, db.Set("rooms/lobby", "a", msg(1)))

	var got ir.Snapshot
	db.Ref("rooms/lobby").Once(feed.Value, func(s ir.Snapshot) { got = s }, func(error) { t.Fatal("unexpected error") })

	assert.Equal(t, "lobby", got.Key)
	assert.True(t, ir.Equal(ir.Obj(ir.O("a", msg(1))), got.Value))
	assert.Equal(t, 0, db.ListenerCount("rooms/lobby"))
}

func TestOnce_UnsupportedKind(t *testing.T) {
	db := New()
	var gotErr error
	db.Ref("p").Once(feed.ChildAdded, nil, func(err error) { gotErr = err })
	assert.Error(t, gotErr)
}

func TestHoldRelease(t *testing.T) {
	db := New()
	db.Hold("p")
	require.NoError(t, db.Set("p", "a", msg(1)))

	q := db.Ref("p")
	fired := 0
	q.Once(feed.Value, func(ir.Snapshot) { fired++ }, nil)
	m := attach(q)
	require.NoError(t, db.Set("p", "b", msg(2)))

	assert.Zero(t, fired)
	assert.Empty(t, m.events)

	db.Release("p")

	assert.Equal(t, 1, fired)
	assert.Equal(t, []string{"child_added:a:", "child_added:b:a"}, m.events)

	db.Release("p")
	assert.Equal(t, 1, fired, "second release is a no-op")
}

func TestHold_AfterLoadDeliversDiffOnRelease(t *testing.T) {
	db := New()
	require.NoError(t, db.Update("p", map[string]ir.Value{"a": msg(1), "b": msg(2), "c": msg(3)}))

	q := db.Ref("p")
	loaded := attach(q)
	require.Equal(t, []string{"a", "b", "c"}, loaded.coll.Keys())
	loaded.events = nil

	db.Hold("p")
	db.Hold("p")
	require.NoError(t, db.Remove("p", "b"))
	require.NoError(t, db.Set("p", "d", msg(4)))
	require.NoError(t, db.Set("p", "a", msg(10)))
	late := attach(q)

	assert.Empty(t, loaded.events)
	assert.Empty(t, late.events)

	db.Release("p")

	assert.Equal(t, []string{"child_removed:b:", "child_changed:a:", "child_added:d:c"}, loaded.events)
	assert.Equal(t, []string{"child_added:a:", "child_added:c:a", "child_added:d:c"}, late.events)

	want := keysOf(db.Children("p"))
	assert.Equal(t, []string{"a", "c", "d"}, want)
	assert.Equal(t, want, loaded.coll.Keys())
	assert.Equal(t, want, late.coll.Keys())

	// Both listener sets follow later writes as ordinary diffs.
	loaded.events, late.events = nil, nil
	require.NoError(t, db.Remove("p", "c"))
	assert.Equal(t, []string{"child_removed:c:"}, loaded.events)
	assert.Equal(t, []string{"child_removed:c:"}, late.events)
}

func TestHold_OffCancelsPendingOnce(t *testing.T) {
	db := New()
	db.Hold("p")
	q := db.Ref("p")

	fired := false
	id := q.Once(feed.Value, func(ir.Snapshot) { fired = true }, nil)
	q.Off(feed.Value, id)
	db.Release("p")

	assert.False(t, fired)
}

func TestFail(t *testing.T) {
	db := New()
	db.Hold("p")
	q := db.Ref("p")
	cause := errors.New("permission denied")

	var gotErr error
	q.Once(feed.Value, func(ir.Snapshot) { t.Fatal("unexpected value") }, func(err error) { gotErr = err })
	m := attach(q)

	db.Fail("p", cause)

	assert.ErrorIs(t, gotErr, cause)
	assert.Equal(t, 0, db.ListenerCount("p"))
	assert.ErrorIs(t, db.Set("p", "a", msg(1)), cause)
	assert.Empty(t, m.events)

	// Later registrations fail immediately.
	gotErr = nil
	q.Once(feed.Value, nil, func(err error) { gotErr = err })
	assert.ErrorIs(t, gotErr, cause)
	attach(q)
	assert.Equal(t, 0, db.ListenerCount("p"))

	db.Recover("p")
	assert.NoError(t, db.Set("p", "a", msg(1)))
}

func TestChildren(t *testing.T) {
	db := New()
	assert.Nil(t, db.Children("nothing"))
	require.NoError(t, db.Set("p", "b", msg(1)))
	require.NoError(t, db.Set("p", "a", msg(2)))
	assert.Equal(t, []string{"a", "b"}, keysOf(db.Children("p")))
}

func TestQuery_EqualAndString(t *testing.T) {
	db := New()
	other := New()

	a := db.Ref("rooms/lobby").OrderByChild("ts").LimitToLast(3)
	b := db.Ref("/rooms/lobby").OrderByChild("/ts").LimitToLast(3)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(db.Ref("rooms/lobby")))
	assert.False(t, a.Equal(other.Ref("rooms/lobby").OrderByChild("ts").LimitToLast(3)))
	assert.False(t, a.Equal(a.LimitToFirst(3)))
	assert.False(t, a.Equal(nil))

	assert.Equal(t, "memfeed:/rooms/lobby?orderByChild=ts&limitToLast=3", a.String())
	assert.Equal(t, "memfeed:/p?orderByKey&limitToFirst=2", db.Ref("p").LimitToFirst(2).String())
	assert.Equal(t, "rooms/lobby", a.Path())
}
