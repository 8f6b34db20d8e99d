package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/feed/memfeed"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/testutil"
)

// flushTimeout bounds the wait for the binding after each step.
const flushTimeout = 5 * time.Second

// Options configures a scenario run.
type Options struct {
	// Tokens mints subscription tokens. Default: "sub-1", "sub-2", ...
	Tokens binding.TokenGenerator
	// Recorder, if set, receives every applied event.
	Recorder binding.Recorder
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// Harness executes one scenario against a fresh feed and binding.
type Harness struct {
	scenario *Scenario
	db       *memfeed.DB
	binding  *binding.Binding
	current  QuerySpec

	mu     sync.Mutex
	result *Result
}

// Run executes a scenario with deterministic tokens and returns the result.
// A non-nil error means the scenario could not be executed; assertion
// failures are reported in the result.
func Run(s *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), s, Options{})
}

// RunWithOptions is Run with explicit options.
//
// Execution flow:
//  1. Seed a fresh memfeed DB under the query path
//  2. Start a binding and bind the query
//  3. Apply each step, flushing the binding after each
//  4. Evaluate assertions against the final snapshot
func RunWithOptions(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	if opts.Tokens == nil {
		opts.Tokens = testutil.NewCountingTokenGenerator("sub")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	h := &Harness{
		scenario: s,
		db:       memfeed.New(),
		current:  s.Query,
		result:   NewResult(),
	}

	if err := h.seed(); err != nil {
		return nil, &ScenarioError{Scenario: s.Name, Step: -1, Op: "seed", Err: err}
	}
	if s.Hold {
		h.db.Hold(s.Query.Path)
	}

	bindOpts := []binding.Option{
		binding.WithLogger(opts.Logger),
		binding.WithTokenGenerator(opts.Tokens),
	}
	if opts.Recorder != nil {
		bindOpts = append(bindOpts, binding.WithRecorder(opts.Recorder))
	}
	h.binding = binding.New(bindOpts...)
	unsubscribe := h.binding.Subscribe(func(snap binding.Snapshot) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.result.AddTrace(snap)
	})
	defer unsubscribe()

	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() {
		runErr <- h.binding.Run(runCtx)
	}()
	defer func() {
		h.binding.Stop()
		cancel()
		<-runErr
	}()

	h.binding.Bind(buildQuery(h.db, s.Query))
	if err := h.flush(ctx); err != nil {
		return nil, &ScenarioError{Scenario: s.Name, Step: -1, Op: "bind", Err: err}
	}

	for i, step := range s.Steps {
		if err := h.apply(step); err != nil {
			return nil, &ScenarioError{Scenario: s.Name, Step: i, Op: step.Op(), Err: err}
		}
		if err := h.flush(ctx); err != nil {
			return nil, &ScenarioError{Scenario: s.Name, Step: i, Op: step.Op(), Err: err}
		}
		if len(step.Expect) > 0 {
			state := h.state()
			for _, msg := range EvaluateAssertions(state, h.trace(), step.Expect) {
				h.result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Op(), msg))
			}
		}
	}

	h.result.Final = h.state()
	for _, msg := range EvaluateAssertions(h.result.Final, h.trace(), s.Assertions) {
		h.result.AddError(msg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, nil
}

// seed writes the scenario's initial children in key order.
func (h *Harness) seed() error {
	keys := make([]string, 0, len(h.scenario.Seed))
	for k := range h.scenario.Seed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := ir.FromGo(h.scenario.Seed[k])
		if err != nil {
			return fmt.Errorf("seed %q: %w", k, err)
		}
		if err := h.db.Set(h.scenario.Query.Path, k, v); err != nil {
			return err
		}
	}
	return nil
}

// apply performs one step.
func (h *Harness) apply(step Step) error {
	path := h.current.Path

	switch step.Op() {
	case "set":
		if step.Set.Path != "" {
			path = step.Set.Path
		}
		v, err := ir.FromGo(step.Set.Value)
		if err != nil {
			return fmt.Errorf("value of %q: %w", step.Set.Key, err)
		}
		return h.db.Set(path, step.Set.Key, v)

	case "update":
		values := make(map[string]ir.Value, len(step.Update))
		for k, raw := range step.Update {
			v, err := ir.FromGo(raw)
			if err != nil {
				return fmt.Errorf("value of %q: %w", k, err)
			}
			values[k] = v
		}
		return h.db.Update(path, values)

	case "remove":
		return h.db.Remove(path, step.Remove)

	case "fail":
		h.db.Fail(path, errors.New(step.Fail))
	case "recover":
		h.db.Recover(path)
	case "hold":
		h.db.Hold(path)
	case "release":
		h.db.Release(path)

	case "rebind":
		q := *step.Rebind
		if q.Path == "" {
			q.Path = h.current.Path
		}
		h.current = q
		h.binding.Bind(buildQuery(h.db, q))

	case "unbind":
		h.binding.Unbind()

	default:
		return fmt.Errorf("no operation")
	}
	return nil
}

func (h *Harness) flush(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	return h.binding.Flush(ctx)
}

// state returns the current published state.
func (h *Harness) state() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return stateOf(h.binding.Snapshot(), len(h.result.Trace))
}

// trace returns a copy of the trace so far.
func (h *Harness) trace() []TraceEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TraceEntry(nil), h.result.Trace...)
}

// buildQuery turns a QuerySpec into a memfeed query.
func buildQuery(db *memfeed.DB, q QuerySpec) feed.Query {
	ref := db.Ref(q.Path)
	if q.OrderByChild != "" {
		ref = ref.OrderByChild(q.OrderByChild)
	}
	switch {
	case q.LimitToFirst > 0:
		ref = ref.LimitToFirst(q.LimitToFirst)
	case q.LimitToLast > 0:
		ref = ref.LimitToLast(q.LimitToLast)
	}
	return ref
}
