package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/livelist/internal/list"
)

// TokenSummary describes the journaled events of one subscription.
type TokenSummary struct {
	Token    string
	FirstSeq int64
	LastSeq  int64
	Count    int
}

// ReadEvents returns a token's events ordered by seq.
// Returns ErrNotFound if the token has none.
func (s *Store) ReadEvents(ctx context.Context, token string) ([]EventRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, token, kind, key, prev_key, value, error, digest
		FROM events
		WHERE token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		row, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("token %q: %w", token, ErrNotFound)
	}
	return out, nil
}

// Tokens lists every journaled subscription in the order it started.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) Tokens(ctx context.Context) ([]TokenSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, MIN(seq), MAX(seq), COUNT(*)
		FROM events
		GROUP BY token
		ORDER BY MIN(seq) ASC, token COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	out := []TokenSummary{}
	for rows.Next() {
		var t TokenSummary
		if err := rows.Scan(&t.Token, &t.FirstSeq, &t.LastSeq, &t.Count); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (EventRow, error) {
	var (
		row   EventRow
		kind  string
		value sql.NullString
	)
	if err := rows.Scan(&row.Seq, &row.Token, &kind, &row.Key, &row.PrevKey, &value, &row.Error, &row.Digest); err != nil {
		return EventRow{}, fmt.Errorf("scan event: %w", err)
	}

	k, err := list.ParseEventKind(kind)
	if err != nil {
		return EventRow{}, fmt.Errorf("seq %d: %w", row.Seq, err)
	}
	row.Kind = k

	if value.Valid {
		v, err := unmarshalValue(value.String)
		if err != nil {
			return EventRow{}, fmt.Errorf("seq %d: %w", row.Seq, err)
		}
		row.Value = v
	}
	return row, nil
}
