// Package ir defines the value records carried by a change feed.
//
// A record is a Snapshot: the child's key plus its Value. Values form a
// sealed set of JSON-shaped types (Null, String, Int, Bool, Array, Object).
// ir imports nothing internal; every other package builds on it.
//
// Key design constraints:
//   - NO float types - numbers are int64 so ordering and digests stay exact
//   - Object keys iterate in RFC 8785 order (UTF-16 code units)
//   - Values are treated as immutable once handed to a feed
package ir
