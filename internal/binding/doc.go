// Package binding binds one change-feed query to observable list state.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Feed callbacks never touch state. Each one wraps its delivery as a
// list.Event tagged with the token of the subscription that produced it and
// enqueues it. Run dequeues events one at a time, folds them through
// list.Reduce, stamps the result with the next logical clock value and
// publishes it to an observe.Cell. Subscribers of the cell are notified
// before the next event is dequeued, so every update is observed in
// delivery order and none are coalesced.
//
// Subscription Lifecycle:
//  1. Bind(q) with no live subscription mints a token, enqueues a Reset
//     tagged with it, then registers the four child listeners and Once(Value).
//  2. Bind(q2) where !q2.Equal(q) detaches every listener of the old
//     subscription (including a pending Once), then does step 1 for q2.
//  3. Unbind detaches every listener. The last snapshot stays published.
//
// Stale Delivery Guard:
// The loop drops any event whose token is not the live subscription's token.
// The Reset for a new token is enqueued before its listeners exist, so the
// reset is always published before the first event of the new query, and
// nothing from an old query is applied once it has been replaced.
//
// Thread-safety model:
//   - Bind, Unbind, Snapshot, Subscribe, Flush, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - Cell subscribers run on the Run goroutine and must not call Flush
package binding
