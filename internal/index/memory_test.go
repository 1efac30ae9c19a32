package index

import (
	"context"
	"testing"

	"audiomark/internal/fingerprint"
)

func TestMemoryIndexEnsureReferenceIdempotent(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	id1, err := idx.EnsureReference(ctx, "/tmp/a.wav", "a.wav")
	if err != nil {
		t.Fatalf("ensure reference: %v", err)
	}
	id2, err := idx.EnsureReference(ctx, "/tmp/a.wav", "a.wav")
	if err != nil {
		t.Fatalf("ensure reference: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected idempotent reference id, got %d vs %d", id1, id2)
	}
}

func TestMemoryIndexAlgorithmPartitioning(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	id, err := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")
	if err != nil {
		t.Fatalf("ensure reference: %v", err)
	}

	tuples := []fingerprint.Tuple{{Hash: "deadbeef", LocalTime: 10}}
	if err := idx.WriteBatch(ctx, id, fingerprint.AlgoMaxima, tuples); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	underChroma, err := idx.Lookup(ctx, fingerprint.AlgoChroma, []string{"deadbeef"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(underChroma) != 0 {
		t.Fatalf("expected no cross-algorithm matches, got %d", len(underChroma))
	}

	underMaxima, err := idx.Lookup(ctx, fingerprint.AlgoMaxima, []string{"deadbeef"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(underMaxima) != 1 {
		t.Fatalf("expected 1 match under the registered algorithm, got %d", len(underMaxima))
	}
}

func TestMemoryIndexIsRegistered(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	id, _ := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")

	registered, err := idx.IsRegistered(ctx, "/tmp/song.wav", fingerprint.AlgoMaxima)
	if err != nil {
		t.Fatalf("is registered: %v", err)
	}
	if registered {
		t.Fatalf("expected not yet registered before any WriteBatch")
	}

	if err := idx.WriteBatch(ctx, id, fingerprint.AlgoMaxima, []fingerprint.Tuple{{Hash: "h", LocalTime: 1}}); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	registered, err = idx.IsRegistered(ctx, "/tmp/song.wav", fingerprint.AlgoMaxima)
	if err != nil {
		t.Fatalf("is registered: %v", err)
	}
	if !registered {
		t.Fatalf("expected registered after WriteBatch")
	}
}

func TestMemoryIndexClearAll(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	id, _ := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")
	idx.WriteBatch(ctx, id, fingerprint.AlgoMaxima, []fingerprint.Tuple{{Hash: "h", LocalTime: 1}})

	if err := idx.ClearAll(ctx); err != nil {
		t.Fatalf("clear all: %v", err)
	}

	if _, err := idx.GetReference(ctx, id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}

	newID, err := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")
	if err != nil {
		t.Fatalf("re-register after clear: %v", err)
	}
	if newID != 1 {
		t.Fatalf("expected fresh id sequence to restart at 1, got %d", newID)
	}
}
