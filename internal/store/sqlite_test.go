package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSQLiteStore(t *testing.T) {
	testChunkStore(t, func(t *testing.T) ChunkStore {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), 0)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteStore_noNearestNeighbors(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if SupportsNearestNeighbors(s) {
		t.Error("sqlite store must not advertise nearest-neighbour search")
	}
}

func TestSQLiteStore_persistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "chunks.db")
	s, err := NewSQLiteStore(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, chunk("a.pdf", 0, "persisted", 0.25, -0.5, 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file missing: %v", err)
	}

	s, err = NewSQLiteStore(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	all, err := s.ScanAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Content != "persisted" {
		t.Fatalf("got %+v", all)
	}
	if got := all[0].Embedding; len(got) != 3 || got[0] != 0.25 || got[1] != -0.5 || got[2] != 1 {
		t.Errorf("embedding = %v", got)
	}
	if err := s.Insert(ctx, chunk("b.pdf", 0, "wrong dims", 1, 0)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("dimension should be fixed by stored rows, got %v", err)
	}
}

func TestSQLiteStore_duplicateRollsBackBatch(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Insert(ctx, chunk("a.pdf", 0, "first", 1, 0)); err != nil {
		t.Fatal(err)
	}
	err = s.Insert(ctx, chunk("b.pdf", 0, "new", 0, 1), chunk("a.pdf", 0, "duplicate", 1, 1))
	if err == nil {
		t.Fatal("expected unique constraint error")
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1 after rolled back batch", n)
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
