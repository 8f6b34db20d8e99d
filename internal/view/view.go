// Package view derives per-record transforms from published binding
// snapshots.
package view

import (
	"sync"

	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/observe"
)

// Result is a binding snapshot with every record mapped through a transform.
type Result[T any] struct {
	Seq     int64
	Err     error
	Loading bool
	Items   []T
}

// Map applies fn to every record of s in order. Err and Loading are copied.
func Map[T any](s binding.Snapshot, fn func(ir.Snapshot) T) Result[T] {
	items := make([]T, len(s.List))
	for i, snap := range s.List {
		items[i] = fn(snap)
	}
	return Result[T]{
		Seq:     s.Seq,
		Err:     s.Err,
		Loading: s.Loading,
		Items:   items,
	}
}

// Bind keeps a derived cell in step with src. The derived cell is updated
// synchronously on every publish of src. Call the returned function to stop.
func Bind[T any](src *observe.Cell[binding.Snapshot], fn func(ir.Snapshot) T) (*observe.Cell[Result[T]], func()) {
	var mu sync.Mutex
	out := observe.NewCell(Map(src.Get(), fn))
	stop := src.Subscribe(func(s binding.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		out.Set(Map(s, fn))
	})

	// A publish between the first Get and Subscribe reached no subscriber.
	mu.Lock()
	if s := src.Get(); s.Seq > out.Get().Seq {
		out.Set(Map(s, fn))
	}
	mu.Unlock()
	return out, stop
}

// ToData returns a transform that flattens a record into its value. For
// object values a copy is returned, with idField set to the record key when
// idField is not empty. Other values are returned as is.
func ToData(idField string) func(ir.Snapshot) ir.Value {
	return func(s ir.Snapshot) ir.Value {
		obj, ok := s.Value.(ir.Object)
		if !ok {
			if s.Value == nil {
				return ir.Null{}
			}
			return s.Value
		}
		out := obj.Clone()
		if idField != "" {
			out[idField] = ir.String(s.Key)
		}
		return out
	}
}

// Values is ToData without key injection.
func Values() func(ir.Snapshot) ir.Value {
	return ToData("")
}

// Keys is a transform returning each record's key.
func Keys(s ir.Snapshot) string {
	return s.Key
}
