package store

import (
	"errors"
	"fmt"

	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
)

// EventRow is one journaled event.
type EventRow struct {
	Seq     int64
	Token   string
	Kind    list.EventKind
	Key     string
	PrevKey string
	// Value is the record value for child events, nil otherwise.
	Value ir.Value
	// Error is the failure message for error events.
	Error  string
	Digest string
}

// HasSnapshot reports whether the row carries a child record.
func (r EventRow) HasSnapshot() bool {
	return r.Value != nil
}

// Event rebuilds the reducer event. Error events get a plain error carrying
// the journaled message.
func (r EventRow) Event() list.Event {
	ev := list.Event{Kind: r.Kind, PrevKey: r.PrevKey}
	if r.HasSnapshot() {
		snap := ir.NewSnapshot(r.Key, r.Value)
		ev.Snapshot = &snap
	}
	if r.Kind == list.EventError {
		ev.Err = errors.New(r.Error)
	}
	return ev
}

// rowFromRecord flattens a binding record into a journal row.
func rowFromRecord(rec binding.Record) (EventRow, error) {
	ev := rec.Event
	row := EventRow{
		Seq:     rec.Seq,
		Token:   rec.Token,
		Kind:    ev.Kind,
		PrevKey: ev.PrevKey,
	}
	if ev.Snapshot != nil {
		snap := ir.NewSnapshot(ev.Snapshot.Key, ev.Snapshot.Value)
		digest, err := ir.SnapshotDigest(snap)
		if err != nil {
			return EventRow{}, fmt.Errorf("digest %s: %w", snap.Key, err)
		}
		row.Key = snap.Key
		row.Value = snap.Value
		row.Digest = digest
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
	}
	return row, nil
}

// marshalValue converts a record value to canonical JSON TEXT for storage.
// A nil value is stored as SQL NULL.
func marshalValue(v ir.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses canonical JSON TEXT back into a value.
func unmarshalValue(data string) (ir.Value, error) {
	v, err := ir.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
