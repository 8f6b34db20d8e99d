// Package memfeed is an in-memory hierarchical store that implements
// feed.Query.
//
// Children live under slash-separated paths. A Query selects the children of
// one path, orders them by key or by a child field, and optionally keeps only
// the first or last n. Every write is diffed against each registered query's
// window and delivered as child_removed, child_added, child_changed and
// child_moved events. Replaying those events through the list reducer
// reproduces the new window exactly.
//
// Hold and Release simulate a path whose initial data has not arrived yet:
// while held, Once(Value) stays pending and new child_added listeners get no
// replay. Fail cancels a path with an error.
//
// Callbacks run synchronously while the DB lock is held. They must not call
// back into the DB.
package memfeed
