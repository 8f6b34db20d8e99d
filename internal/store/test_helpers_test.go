package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/livelist/internal/binding"
	"github.com/roach88/livelist/internal/ir"
	"github.com/roach88/livelist/internal/list"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// added builds an Added record with an integer value.
func added(seq int64, token, key string, n int, prev string) binding.Record {
	return binding.Record{Seq: seq, Token: token, Event: list.Added(ir.NewSnapshot(key, ir.Int(n)), prev)}
}

func record(seq int64, token string, ev list.Event) binding.Record {
	return binding.Record{Seq: seq, Token: token, Event: ev}
}
