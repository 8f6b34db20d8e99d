package binding

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/livelist/internal/feed/memfeed"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
	"github.com/roach88/livelist/internal/testutil"
)

var errBoom = errors.New("permission denied")

type fakeRecorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *fakeRecorder) Record(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *fakeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Event.Kind.String()
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBinding(opts ...Option) *Binding {
	base := []Option{
		WithLogger(discardLogger()),
		WithTokenGenerator(testutil.NewCountingTokenGenerator("sub")),
	}
	return New(append(base, opts...)...)
}

// startBinding runs b until the test ends.
func startBinding(t *testing.T, opts ...Option) *Binding {
	t.Helper()
	b := newTestBinding(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return b
}

func flush(t *testing.T, b *Binding) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Flush(ctx))
}

func seedDB(t *testing.T, keys ...string) *memfeed.DB {
	t.Helper()
	db := memfeed.New()
	for i, k := range keys {
		require.NoError(t, db.Set("items", k, ir.Int(i+1)))
	}
	return db
}

func TestBinding_InitialState(t *testing.T) {
	b := newTestBinding()

	snap := b.Snapshot()
	assert.True(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.Empty(t, snap.List)
	assert.Equal(t, int64(0), snap.Seq)
	assert.Nil(t, b.Query())
}

func TestBinding_InitialLoad(t *testing.T) {
	db := seedDB(t, "b", "a")
	b := startBinding(t)

	require.True(t, b.Bind(db.Ref("items")))
	flush(t, b)

	snap := b.Snapshot()
	assert.False(t, snap.Loading)
	assert.NoError(t, snap.Err)
	assert.Equal(t, []string{"a", "b"}, snap.Keys())
	assert.Equal(t, "sub-1", snap.Token)
	// reset, added a, added b, initial sync
	assert.Equal(t, int64(4), snap.Seq)
}

func TestBinding_ChildrenBeforeInitialSync(t *testing.T) {
	db := seedDB(t, "a", "b")
	b := startBinding(t)

	var mu sync.Mutex
	var seen []Snapshot
	b.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	b.Bind(db.Ref("items"))
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	for _, s := range seen {
		if !s.Loading {
			assert.Equal(t, []string{"a", "b"}, s.Keys(), "loaded state must already hold the initial children")
		}
	}
}

func TestBinding_LiveUpdates(t *testing.T) {
	db := seedDB(t, "a", "b")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)

	require.NoError(t, db.Set("items", "c", ir.Int(3)))
	require.NoError(t, db.Remove("items", "a"))
	require.NoError(t, db.Set("items", "b", ir.Int(50)))
	flush(t, b)

	snap := b.Snapshot()
	assert.Equal(t, []string{"b", "c"}, snap.Keys())
	assert.Equal(t, ir.Int(50), snap.List[0].Value)
	assert.Equal(t, testutil.Keys(db.Children("items")), snap.Keys())
}

func TestBinding_EqualQueryIsNoop(t *testing.T) {
	db := seedDB(t, "a")
	b := startBinding(t)
	require.True(t, b.Bind(db.Ref("items").LimitToFirst(5)))
	flush(t, b)
	before := b.Snapshot()

	assert.False(t, b.Bind(db.Ref("items").LimitToFirst(5)))
	flush(t, b)

	after := b.Snapshot()
	assert.Equal(t, before.Seq, after.Seq)
	assert.Equal(t, "sub-1", after.Token)
	assert.Equal(t, 4, db.ListenerCount("items"))
}

func TestBinding_Rebind(t *testing.T) {
	db := seedDB(t, "a", "b", "c")
	b := startBinding(t)

	var mu sync.Mutex
	var seen []Snapshot
	b.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	b.Bind(db.Ref("items"))
	flush(t, b)
	require.True(t, b.Bind(db.Ref("items").LimitToFirst(1)))
	flush(t, b)

	snap := b.Snapshot()
	assert.Equal(t, "sub-2", snap.Token)
	assert.Equal(t, []string{"a"}, snap.Keys())
	assert.False(t, snap.Loading)
	// Old listeners are detached; the one-shot has fired.
	assert.Equal(t, 4, db.ListenerCount("items"))

	mu.Lock()
	defer mu.Unlock()
	first := -1
	for i, s := range seen {
		if s.Token == "sub-2" {
			first = i
			break
		}
	}
	require.GreaterOrEqual(t, first, 0)
	assert.True(t, seen[first].Loading, "reset is published first")
	assert.Empty(t, seen[first].List)
	for _, s := range seen[first:] {
		assert.Equal(t, "sub-2", s.Token, "no old-query snapshot after reset")
	}
}

func TestBinding_StaleEventsDropped(t *testing.T) {
	db := seedDB(t, "a")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)
	oldToken := b.Snapshot().Token

	b.Bind(db.Ref("items").LimitToLast(1))
	flush(t, b)
	before := b.Snapshot()

	// A late delivery from the detached subscription.
	b.dispatch(oldToken, list.Added(testutil.Snap("zz", 1), "a"))
	flush(t, b)

	after := b.Snapshot()
	assert.Equal(t, before.Seq, after.Seq)
	assert.Equal(t, []string{"a"}, after.Keys())
}

func TestBinding_Unbind(t *testing.T) {
	db := seedDB(t, "a", "b")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)
	token := b.Snapshot().Token

	b.Unbind()
	assert.Equal(t, 0, db.ListenerCount("items"))
	assert.Nil(t, b.Query())

	require.NoError(t, db.Set("items", "c", ir.Int(3)))
	b.dispatch(token, list.Removed(testutil.Snap("a", 1)))
	flush(t, b)

	snap := b.Snapshot()
	assert.Equal(t, []string{"a", "b"}, snap.Keys(), "last snapshot stays cached")
	assert.Equal(t, int64(4), snap.Seq)

	// Binding again after unbind starts fresh.
	require.True(t, b.Bind(db.Ref("items")))
	flush(t, b)
	assert.Equal(t, []string{"a", "b", "c"}, b.Snapshot().Keys())
	assert.Equal(t, "sub-2", b.Snapshot().Token)
}

func TestBinding_BindNilUnbinds(t *testing.T) {
	db := seedDB(t, "a")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)

	assert.False(t, b.Bind(nil))
	assert.Equal(t, 0, db.ListenerCount("items"))
}

func TestBinding_HoldAndRelease(t *testing.T) {
	db := seedDB(t, "a", "b")
	db.Hold("items")
	b := startBinding(t)

	b.Bind(db.Ref("items"))
	flush(t, b)

	snap := b.Snapshot()
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.List)

	db.Release("items")
	flush(t, b)

	snap = b.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, []string{"a", "b"}, snap.Keys())
}

func TestBinding_InitialSyncFailure(t *testing.T) {
	db := seedDB(t, "a")
	db.Hold("items")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)

	db.Fail("items", errBoom)
	flush(t, b)

	snap := b.Snapshot()
	assert.ErrorIs(t, snap.Err, errBoom)
	assert.False(t, snap.Loading)
	assert.Equal(t, 0, db.ListenerCount("items"))
}

func TestBinding_ErrorKeepsCollection(t *testing.T) {
	db := seedDB(t, "a", "b")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)

	b.dispatch(b.liveToken(), list.Failed(errBoom))
	flush(t, b)

	snap := b.Snapshot()
	assert.ErrorIs(t, snap.Err, errBoom)
	assert.Equal(t, []string{"a", "b"}, snap.Keys())

	// Updates after an error are still applied.
	require.NoError(t, db.Set("items", "c", ir.Int(3)))
	flush(t, b)
	assert.Equal(t, []string{"a", "b", "c"}, b.Snapshot().Keys())
	assert.ErrorIs(t, b.Snapshot().Err, errBoom)
}

func TestBinding_UnknownChangeAndMalformed(t *testing.T) {
	db := seedDB(t, "a")
	b := startBinding(t)
	b.Bind(db.Ref("items"))
	flush(t, b)
	seq := b.Snapshot().Seq

	b.dispatch(b.liveToken(), list.Changed(testutil.Snap("missing", 1)))
	flush(t, b)
	assert.Equal(t, seq+1, b.Snapshot().Seq, "unknown change still publishes")
	assert.Equal(t, []string{"a"}, b.Snapshot().Keys())

	b.dispatch(b.liveToken(), list.Event{Kind: list.EventAdded})
	flush(t, b)
	assert.Equal(t, seq+1, b.Snapshot().Seq, "key-less event publishes nothing")
}

func TestBinding_Recorder(t *testing.T) {
	db := seedDB(t, "a", "b")
	rec := &fakeRecorder{}
	b := startBinding(t, WithRecorder(rec))

	b.Bind(db.Ref("items"))
	flush(t, b)

	assert.Equal(t, []string{"reset", "added", "added", "initial_sync"}, rec.kinds())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, r := range rec.records {
		assert.Equal(t, int64(i+1), r.Seq)
		assert.Equal(t, "sub-1", r.Token)
	}
}

func TestBinding_WithClock(t *testing.T) {
	db := seedDB(t, "a")
	b := startBinding(t, WithClock(NewClockAt(100)))

	b.Bind(db.Ref("items"))
	flush(t, b)

	assert.Equal(t, int64(103), b.Snapshot().Seq)
}

func TestBinding_FixedGenerator(t *testing.T) {
	db := seedDB(t, "a")
	b := startBinding(t, WithTokenGenerator(NewFixedGenerator("first", "second")))

	b.Bind(db.Ref("items"))
	b.Bind(db.Ref("items").OrderByChild("n"))
	flush(t, b)

	assert.Equal(t, "second", b.Snapshot().Token)
}

func TestBinding_SubscribeAndCell(t *testing.T) {
	db := seedDB(t, "a", "b")
	b := startBinding(t)

	var mu sync.Mutex
	var seqs []int64
	unsubscribe := b.Subscribe(func(s Snapshot) {
		mu.Lock()
		seqs = append(seqs, s.Seq)
		mu.Unlock()
	})

	b.Bind(db.Ref("items"))
	flush(t, b)
	unsubscribe()
	require.NoError(t, db.Set("items", "c", ir.Int(3)))
	flush(t, b)

	mu.Lock()
	assert.Equal(t, []int64{1, 2, 3, 4}, seqs)
	mu.Unlock()
	assert.Equal(t, b.Snapshot().Seq, b.Cell().Get().Seq)
	assert.Equal(t, int64(5), b.Cell().Version())
}

func TestBinding_Stop(t *testing.T) {
	db := seedDB(t, "a")
	b := newTestBinding()
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(context.Background())
	}()

	b.Bind(db.Ref("items"))
	b.Stop()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.Equal(t, 0, db.ListenerCount("items"))
	assert.ErrorIs(t, b.Flush(context.Background()), ErrStopped)
	assert.False(t, b.Bind(db.Ref("items").LimitToFirst(1)))
}

func TestBinding_ContextCancel(t *testing.T) {
	db := seedDB(t, "a")
	b := newTestBinding()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- b.Run(ctx)
	}()
	b.Bind(db.Ref("items"))
	flush(t, b)

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, db.ListenerCount("items"))
}

func TestBinding_FlushContextTimeout(t *testing.T) {
	b := newTestBinding() // never run

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, b.Flush(ctx), context.DeadlineExceeded)
}

func TestBinding_ConcurrentWritesAndRebinds(t *testing.T) {
	db := memfeed.New()
	b := startBinding(t)
	full := db.Ref("items")
	tail := db.Ref("items").LimitToLast(3)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			key := fmt.Sprintf("k%03d", i%40)
			if i%7 == 0 {
				_ = db.Remove("items", key)
				continue
			}
			_ = db.Set("items", key, ir.Int(i))
		}
	}()

	for i := range 20 {
		if i%2 == 0 {
			b.Bind(tail)
		} else {
			b.Bind(full)
		}
	}
	wg.Wait()
	flush(t, b)

	snap := b.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, testutil.Keys(db.Children("items")), snap.Keys())
	for i, item := range db.Children("items") {
		assert.True(t, ir.Equal(item.Value, snap.List[i].Value), "value of %s", item.Key)
	}
}
