// Package list implements the ordered keyed collection reducer.
//
// A Collection is an ordered sequence of unique keys with index-aligned
// records. It is reconciled incrementally from four child events:
//
//   - Added:   insert after PrevKey (front when PrevKey is empty or unknown)
//   - Changed: replace the record for an existing key, keys untouched
//   - Moved:   Removed followed by Added at the new position
//   - Removed: delete the key and its record
//
// Reduce folds those events, plus InitialSyncComplete, Error and Reset, into
// a State. Both Apply and Reduce are pure: inputs are never mutated and every
// transition that changes something returns freshly allocated slices, so any
// State handed out earlier stays valid for concurrent readers.
//
// Events whose snapshot is nil or has an empty key are no-ops. Changed for a
// key that is not present is also a no-op, never an insert. Added for a key
// that is already present behaves like Moved with the new record.
package list
