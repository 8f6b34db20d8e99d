package store

import (
	"context"
	"fmt"

	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
)

// ReplayResult is the state rebuilt from one token's journal.
type ReplayResult struct {
	Token string
	State list.State
	// LastSeq is the seq of the last applied row.
	LastSeq int64
	// Events is the number of rows replayed.
	Events int
}

// Replay rebuilds the state a binding published for token by folding its
// journaled events through list.Reduce from the initial state.
//
// Every stored digest is re-verified; a mismatch means the journal was
// altered and replay fails.
func (s *Store) Replay(ctx context.Context, token string) (ReplayResult, error) {
	rows, err := s.ReadEvents(ctx, token)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	state := list.Initial()
	for _, row := range rows {
		if err := verifyDigest(row); err != nil {
			return ReplayResult{}, fmt.Errorf("replay %s: %w", token, err)
		}
		state = list.Reduce(state, row.Event())
	}

	return ReplayResult{
		Token:   token,
		State:   state,
		LastSeq: rows[len(rows)-1].Seq,
		Events:  len(rows),
	}, nil
}

// ReplayAll replays every token in the journal, in start order.
func (s *Store) ReplayAll(ctx context.Context) ([]ReplayResult, error) {
	tokens, err := s.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ReplayResult, 0, len(tokens))
	for _, t := range tokens {
		res, err := s.Replay(ctx, t.Token)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// verifyDigest checks a child row's value against its digest. Child rows
// are always written with a value, so a missing one is tampering too.
func verifyDigest(row EventRow) error {
	switch row.Kind {
	case list.EventAdded, list.EventChanged, list.EventMoved, list.EventRemoved:
	default:
		return nil
	}
	if !row.HasSnapshot() {
		return fmt.Errorf("seq %d: %s row for key %q has no value", row.Seq, row.Kind, row.Key)
	}
	got, err := ir.SnapshotDigest(ir.NewSnapshot(row.Key, row.Value))
	if err != nil {
		return fmt.Errorf("seq %d: %w", row.Seq, err)
	}
	if got != row.Digest {
		return fmt.Errorf("seq %d: digest mismatch for key %q", row.Seq, row.Key)
	}
	return nil
}
