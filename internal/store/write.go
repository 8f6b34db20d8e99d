package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/livelist/internal/binding"
)

const insertEventSQL = `
	INSERT INTO events
	(seq, token, kind, key, prev_key, value, error, digest)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(token, seq) DO NOTHING
`

// WriteEvent appends one applied event.
// Uses ON CONFLICT DO NOTHING for idempotency - rewriting the same
// (token, seq) is silently ignored.
func (s *Store) WriteEvent(ctx context.Context, rec binding.Record) error {
	return s.WriteEvents(ctx, []binding.Record{rec})
}

// WriteEvents appends records in one transaction.
func (s *Store) WriteEvents(ctx context.Context, recs []binding.Record) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("write events: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if err := insertRecord(ctx, stmt, rec); err != nil {
			return fmt.Errorf("write events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}

func insertRecord(ctx context.Context, stmt *sql.Stmt, rec binding.Record) error {
	row, err := rowFromRecord(rec)
	if err != nil {
		return err
	}
	value, err := marshalValue(row.Value)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx,
		row.Seq,
		row.Token,
		row.Kind.String(),
		row.Key,
		row.PrevKey,
		value,
		row.Error,
		row.Digest,
	)
	if err != nil {
		return fmt.Errorf("insert seq %d: %w", row.Seq, err)
	}
	return nil
}
