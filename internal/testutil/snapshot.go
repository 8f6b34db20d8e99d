package testutil

import "github.com/roach88/livelist/internal/ir"

// Snap builds a snapshot from a Go value. Panics on values ir.FromGo rejects.
func Snap(key string, value any) ir.Snapshot {
	v, err := ir.FromGo(value)
	if err != nil {
		panic(err)
	}
	return ir.NewSnapshot(key, v)
}

// Snaps builds snapshots whose value is the key itself, for tests that only
// care about ordering.
func Snaps(keys ...string) []ir.Snapshot {
	out := make([]ir.Snapshot, len(keys))
	for i, k := range keys {
		out[i] = ir.NewSnapshot(k, ir.String(k))
	}
	return out
}

// Keys returns the keys of snaps in order.
func Keys(snaps []ir.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Key
	}
	return out
}
