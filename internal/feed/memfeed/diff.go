package memfeed

import (
	"sort"

	"github.com/roach88/livelist/internal/feed"
	"github.com/roach88/livelist/internal/ir"
)

// change is one child event produced by diffing two windows.
type change struct {
	kind    feed.EventKind
	snap    ir.Snapshot
	prevKey string
}

// diffWindows returns the events that turn old into next when applied in
// order.
//
// Children present in both windows keep their place if they belong to the
// longest run that is already in order; every other surviving child gets a
// child_moved. Removals come first, then a left-to-right pass over next emits
// child_added, child_changed and child_moved with the new previous sibling.
func diffWindows(old, next []ir.Snapshot) []change {
	var out []change

	inNext := make(map[string]bool, len(next))
	for _, s := range next {
		inNext[s.Key] = true
	}
	oldIndex := make(map[string]int, len(old))
	for i, s := range old {
		if !inNext[s.Key] {
			out = append(out, change{kind: feed.ChildRemoved, snap: s})
			continue
		}
		oldIndex[s.Key] = i
	}

	stable := stableKeys(next, oldIndex)

	for i, s := range next {
		prevKey := ""
		if i > 0 {
			prevKey = next[i-1].Key
		}
		j, existed := oldIndex[s.Key]
		if !existed {
			out = append(out, change{kind: feed.ChildAdded, snap: s, prevKey: prevKey})
			continue
		}
		if !ir.Equal(old[j].Value, s.Value) {
			out = append(out, change{kind: feed.ChildChanged, snap: s})
		}
		if !stable[s.Key] {
			out = append(out, change{kind: feed.ChildMoved, snap: s, prevKey: prevKey})
		}
	}
	return out
}

// stableKeys returns the keys of a longest subsequence of next whose old
// positions are increasing. Those children need no move.
func stableKeys(next []ir.Snapshot, oldIndex map[string]int) map[string]bool {
	var keys []string
	var pos []int
	for _, s := range next {
		if i, ok := oldIndex[s.Key]; ok {
			keys = append(keys, s.Key)
			pos = append(pos, i)
		}
	}

	// Patience sorting: tails[l] is the index (into pos) of the smallest
	// tail of an increasing run of length l+1.
	tails := make([]int, 0, len(pos))
	parent := make([]int, len(pos))
	for i, p := range pos {
		l := sort.Search(len(tails), func(k int) bool { return pos[tails[k]] >= p })
		if l > 0 {
			parent[i] = tails[l-1]
		} else {
			parent[i] = -1
		}
		if l == len(tails) {
			tails = append(tails, i)
		} else {
			tails[l] = i
		}
	}

	stable := make(map[string]bool, len(tails))
	if len(tails) == 0 {
		return stable
	}
	for i := tails[len(tails)-1]; i >= 0; i = parent[i] {
		stable[keys[i]] = true
	}
	return stable
}

// replay returns the child_added events that build window from empty.
func replay(window []ir.Snapshot) []change {
	out := make([]change, len(window))
	for i, s := range window {
		prevKey := ""
		if i > 0 {
			prevKey = window[i-1].Key
		}
		out[i] = change{kind: feed.ChildAdded, snap: s, prevKey: prevKey}
	}
	return out
}
