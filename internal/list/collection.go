package list

import (
	"slices"

	"github.com/roach88/livelist/internal/ir"
)

// Collection is an immutable ordered keyed collection.
//
// INVARIANTS:
//   - len(keys) == len(items)
//   - items[i].Key == keys[i]
//   - keys holds no duplicates
//
// The zero value is an empty collection.
type Collection struct {
	keys  []string
	items []ir.Snapshot
}

// Empty returns the empty collection.
func Empty() Collection {
	return Collection{}
}

// FromSnapshots builds a collection in the given order. Snapshots with empty
// keys are skipped; on duplicate keys the first occurrence wins.
func FromSnapshots(snaps ...ir.Snapshot) Collection {
	var c Collection
	seen := make(map[string]bool, len(snaps))
	for _, s := range snaps {
		if !s.Valid() || seen[s.Key] {
			continue
		}
		seen[s.Key] = true
		c.keys = append(c.keys, s.Key)
		c.items = append(c.items, s)
	}
	return c
}

// Len returns the number of records.
func (c Collection) Len() int {
	return len(c.keys)
}

// Keys returns a copy of the ordered keys.
func (c Collection) Keys() []string {
	return slices.Clone(c.keys)
}

// Items returns a copy of the ordered records.
func (c Collection) Items() []ir.Snapshot {
	return slices.Clone(c.items)
}

// At returns the record at index i.
func (c Collection) At(i int) ir.Snapshot {
	return c.items[i]
}

// IndexOf returns the position of key, or -1. Linear scan; first match wins.
func (c Collection) IndexOf(key string) int {
	for i, k := range c.keys {
		if k == key {
			return i
		}
	}
	return -1
}

// Get returns the record for key.
func (c Collection) Get(key string) (ir.Snapshot, bool) {
	i := c.IndexOf(key)
	if i < 0 {
		return ir.Snapshot{}, false
	}
	return c.items[i], true
}

// Equal reports whether both collections hold the same keys in the same
// order with equal values.
func (c Collection) Equal(other Collection) bool {
	if !slices.Equal(c.keys, other.keys) {
		return false
	}
	for i := range c.items {
		if !ir.Equal(c.items[i].Value, other.items[i].Value) {
			return false
		}
	}
	return true
}

// insertAt returns a new collection with snap inserted at index i.
func (c Collection) insertAt(i int, snap ir.Snapshot) Collection {
	keys := make([]string, 0, len(c.keys)+1)
	keys = append(keys, c.keys[:i]...)
	keys = append(keys, snap.Key)
	keys = append(keys, c.keys[i:]...)

	items := make([]ir.Snapshot, 0, len(c.items)+1)
	items = append(items, c.items[:i]...)
	items = append(items, snap)
	items = append(items, c.items[i:]...)

	return Collection{keys: keys, items: items}
}

// replaceAt returns a new collection with items[i] replaced. keys is shared:
// it is never written after construction.
func (c Collection) replaceAt(i int, snap ir.Snapshot) Collection {
	items := slices.Clone(c.items)
	items[i] = snap
	return Collection{keys: c.keys, items: items}
}

// deleteAt returns a new collection without index i.
func (c Collection) deleteAt(i int) Collection {
	keys := make([]string, 0, len(c.keys)-1)
	keys = append(keys, c.keys[:i]...)
	keys = append(keys, c.keys[i+1:]...)

	items := make([]ir.Snapshot, 0, len(c.items)-1)
	items = append(items, c.items[:i]...)
	items = append(items, c.items[i+1:]...)

	return Collection{keys: keys, items: items}
}
