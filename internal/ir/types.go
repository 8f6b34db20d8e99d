package ir

import "strings"

// Snapshot is one child record delivered by a feed: its key and value.
//
// An empty Key marks a malformed record. Consumers treat events carrying
// such a snapshot as no-ops.
type Snapshot struct {
	Key   string `json:"key"`
	Value Value  `json:"value"`
}

// NewSnapshot builds a snapshot from a key and value. A nil value becomes Null.
func NewSnapshot(key string, value Value) Snapshot {
	if value == nil {
		value = Null{}
	}
	return Snapshot{Key: key, Value: value}
}

// Valid reports whether the snapshot carries a key.
func (s Snapshot) Valid() bool {
	return s.Key != ""
}

// Child returns the value at a slash-separated path below the snapshot's
// value, or Null if any segment is missing.
func (s Snapshot) Child(path string) Value {
	var cur Value = s.Value
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" {
			continue
		}
		obj, ok := cur.(Object)
		if !ok {
			return Null{}
		}
		next, ok := obj[seg]
		if !ok {
			return Null{}
		}
		cur = next
	}
	if cur == nil {
		return Null{}
	}
	return cur
}

// Exists reports whether the snapshot holds a non-null value.
func (s Snapshot) Exists() bool {
	if s.Value == nil {
		return false
	}
	_, isNull := s.Value.(Null)
	return !isNull
}
