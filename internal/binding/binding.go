package binding

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
	"github.com/roach88/livelist/internal/observe"
)

// Snapshot is one published state of a binding.
type Snapshot struct {
	// Seq is the logical clock value of this publish. Strictly increasing.
	Seq int64
	// Token identifies the subscription whose event produced this snapshot.
	Token string
	// Err is the last feed failure, if any.
	Err error
	// Loading is true until the initial sync completes or fails.
	Loading bool
	// List holds the ordered records. Never mutated after publish.
	List []ir.Snapshot
}

// Keys returns the keys of List in order.
func (s Snapshot) Keys() []string {
	keys := make([]string, len(s.List))
	for i, item := range s.List {
		keys[i] = item.Key
	}
	return keys
}

// State returns a copy of the published list for tests and tools that need
// the collection rather than the flat list.
func (s Snapshot) State() list.State {
	return list.State{
		Err:        s.Err,
		Loading:    s.Loading,
		Collection: list.FromSnapshots(slices.Clone(s.List)...),
	}
}

// Record is one applied event, handed to a Recorder after it is published.
type Record struct {
	Seq   int64
	Token string
	Event list.Event
}

// Recorder observes applied events. Record is called on the Run goroutine
// and must not block.
type Recorder interface {
	Record(rec Record)
}

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binding) {
		b.logger = logger
	}
}

// WithTokenGenerator sets the subscription token source.
// Default: UUIDv7Generator.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(b *Binding) {
		b.tokens = gen
	}
}

// WithClock sets the logical clock. Use NewClockAt to continue a journal.
func WithClock(clock *Clock) Option {
	return func(b *Binding) {
		b.clock = clock
	}
}

// WithRecorder attaches a recorder that sees every applied event.
func WithRecorder(rec Recorder) Option {
	return func(b *Binding) {
		b.recorder = rec
	}
}

// Binding is the subscription lifecycle controller for one consumer.
//
// INVARIANTS:
//   - At most one live subscription; its listeners are the only ones the
//     binding holds
//   - Only the Run goroutine reads or writes state
//   - Published snapshots are immutable
type Binding struct {
	queue    *eventQueue
	clock    *Clock
	tokens   TokenGenerator
	logger   *slog.Logger
	recorder Recorder
	cell     *observe.Cell[Snapshot]

	mu  sync.Mutex
	sub *subscription

	// Owned by the Run goroutine.
	state list.State
}

// New creates an unbound Binding. Call Run on one goroutine, then Bind.
func New(opts ...Option) *Binding {
	initial := list.Initial()
	b := &Binding{
		queue:  newEventQueue(),
		clock:  NewClock(),
		tokens: UUIDv7Generator{},
		logger: slog.Default(),
		state:  initial,
		cell:   observe.NewCell(Snapshot{Loading: initial.Loading}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Bind makes q the bound query.
//
// If q is Equal to the bound query this is a no-op and returns false.
// Otherwise any existing subscription is detached, a reset to the initial
// loading state is queued, and a fresh subscription is opened. Bind(nil)
// is Unbind. Returns false once the binding has stopped.
func (b *Binding) Bind(q feed.Query) bool {
	if q == nil {
		b.Unbind()
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue.Closed() {
		return false
	}
	if b.sub != nil && b.sub.query.Equal(q) {
		return false
	}

	if b.sub != nil {
		b.logger.Info("rebinding", "from", b.sub.query.String(), "to", q.String(), "old_token", b.sub.token)
		b.sub.close()
		b.sub = nil
	}

	token := b.tokens.Generate()
	// The reset must be queued before any listener can deliver.
	b.queue.Enqueue(envelope{typ: envelopeEvent, token: token, event: list.Reset()})
	b.sub = openSubscription(q, token, b.dispatch)
	b.logger.Debug("bound", "query", q.String(), "token", token)
	return true
}

// Unbind detaches the live subscription, if any. The last published
// snapshot stays readable.
func (b *Binding) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
}

func (b *Binding) detachLocked() {
	if b.sub == nil {
		return
	}
	b.logger.Debug("unbound", "query", b.sub.query.String(), "token", b.sub.token)
	b.sub.close()
	b.sub = nil
}

// Query returns the bound query, or nil.
func (b *Binding) Query() feed.Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub == nil {
		return nil
	}
	return b.sub.query
}

// liveToken returns the token of the live subscription, or "".
func (b *Binding) liveToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub == nil {
		return ""
	}
	return b.sub.token
}

// dispatch is called from feed callbacks. It only enqueues.
func (b *Binding) dispatch(token string, ev list.Event) {
	b.queue.Enqueue(envelope{typ: envelopeEvent, token: token, event: ev})
}

// Snapshot returns the latest published snapshot.
func (b *Binding) Snapshot() Snapshot {
	return b.cell.Get()
}

// Subscribe registers fn for every future publish. fn runs on the Run
// goroutine before the next event is processed.
func (b *Binding) Subscribe(fn func(Snapshot)) func() {
	return b.cell.Subscribe(fn)
}

// Cell exposes the published snapshots as an observable cell.
func (b *Binding) Cell() *observe.Cell[Snapshot] {
	return b.cell
}

// Flush waits until every event queued before the call has been published.
// Returns ErrStopped if the binding stops first.
func (b *Binding) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	if !b.queue.Enqueue(envelope{typ: envelopeBarrier, done: done}) {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the single-writer loop. Blocks until ctx is cancelled or Stop
// is called; either way the live subscription is detached.
//
// Must be called from exactly ONE goroutine.
func (b *Binding) Run(ctx context.Context) error {
	b.logger.Info("binding starting")
	defer b.shutdown()

	for {
		if env, ok := b.queue.TryDequeue(); ok {
			b.process(env)
			continue
		}

		select {
		case <-ctx.Done():
			b.logger.Info("binding stopping: context cancelled")
			return ctx.Err()

		case <-b.queue.Wait():
			// The signal channel is closed with the queue; an empty closed
			// queue ends the loop.
			if b.queue.Closed() && b.queue.Len() == 0 {
				b.logger.Info("binding stopping: stopped")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run processes what is already queued and returns.
func (b *Binding) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detachLocked()
	b.queue.Close()
}

// shutdown detaches listeners and fails any barrier left in the queue.
func (b *Binding) shutdown() {
	b.Stop()
	for {
		env, ok := b.queue.TryDequeue()
		if !ok {
			return
		}
		if env.typ == envelopeBarrier {
			env.done <- ErrStopped
		}
	}
}

// process applies one queue entry. Called only from Run.
func (b *Binding) process(env envelope) {
	if env.typ == envelopeBarrier {
		env.done <- nil
		return
	}

	live := b.liveToken()
	if env.token != live {
		logDropped(b.logger, env, live)
		return
	}

	ev := env.event
	switch ev.Kind {
	case list.EventAdded, list.EventChanged, list.EventMoved, list.EventRemoved:
		if ev.Snapshot == nil || !ev.Snapshot.Valid() {
			return
		}
		if ev.Kind == list.EventChanged && b.state.Collection.IndexOf(ev.Snapshot.Key) < 0 {
			logUnknownChange(b.logger, env.token, ev)
		}
	case list.EventError:
		b.logger.Warn("feed error", "error", ev.Err, "token", env.token)
	}

	b.state = list.Reduce(b.state, ev)
	seq := b.clock.Next()

	b.cell.Set(Snapshot{
		Seq:     seq,
		Token:   env.token,
		Err:     b.state.Err,
		Loading: b.state.Loading,
		List:    b.state.Collection.Items(),
	})

	if b.recorder != nil {
		b.recorder.Record(Record{Seq: seq, Token: env.token, Event: ev})
	}
}
