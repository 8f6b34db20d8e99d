// Package store provides a SQLite-backed journal of the events a binding
// applied.
//
// The journal is append-only. Each row is one event as the binding's loop
// processed it: the logical seq it was published under, the subscription
// token, the event kind and, for child events, the record key, prevKey,
// canonical JSON value and content digest.
//
// # Critical Patterns
//
// Logical time:
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//   - Replaying a token's rows in seq order through list.Reduce rebuilds the
//     state the binding published
//
// Deterministic results:
//   - Queries order by seq ASC, token ASC COLLATE BINARY
//
// Idempotent writes:
//   - PRIMARY KEY(token, seq) with ON CONFLICT DO NOTHING
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
