// Package harness runs YAML scenarios against a binding backed by an
// in-memory feed.
//
// A scenario seeds a memfeed path, binds a query, then applies steps: child
// writes, path failures, hold and release of the initial load, rebinds and
// unbinds. The binding is flushed after every step, so each step's effects
// are fully published before the next one runs.
//
// Every published snapshot is captured in Result.Trace. Traces are
// deterministic: tokens come from a counting generator ("sub-1", "sub-2",
// ...) and seq from the binding's logical clock. Golden files store the
// trace as canonical JSON:
//
//	{"final":{...},"scenario_name":"...","trace":[{"keys":[...],"loading":true,"seq":1,"token":"sub-1"}, ...]}
//
// Assertions check the final state (and optionally the state after a step):
// key order, loading, error, count, a record's value, and how many
// snapshots were published.
package harness
