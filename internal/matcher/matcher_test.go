package matcher

import (
	"context"
	"testing"

	"audiomark/internal/fingerprint"
	"audiomark/internal/index"
)

func TestMatchSelfIdentification(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	ref, _ := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")
	refTuples := []fingerprint.Tuple{
		{Hash: "a", LocalTime: 0},
		{Hash: "b", LocalTime: 1},
		{Hash: "c", LocalTime: 2},
	}
	if err := idx.WriteBatch(ctx, ref, fingerprint.AlgoMaxima, refTuples); err != nil {
		t.Fatalf("write batch: %v", err)
	}

	result, err := Match(ctx, idx, fingerprint.AlgoMaxima, refTuples, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected a match")
	}
	if result.Winner.ReferenceId != ref {
		t.Fatalf("expected winner %d, got %d", ref, result.Winner.ReferenceId)
	}
	if result.Winner.Score != len(refTuples) {
		t.Fatalf("expected score %d (perfect self-alignment), got %d", len(refTuples), result.Winner.Score)
	}
	if result.Winner.AlignedOffset != 0 {
		t.Fatalf("expected aligned offset 0 for self-identification, got %d", result.Winner.AlignedOffset)
	}
}

func TestMatchOffsetRecovery(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	ref, _ := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")
	refTuples := []fingerprint.Tuple{
		{Hash: "a", LocalTime: 10},
		{Hash: "b", LocalTime: 11},
		{Hash: "c", LocalTime: 12},
		{Hash: "d", LocalTime: 13},
	}
	idx.WriteBatch(ctx, ref, fingerprint.AlgoMaxima, refTuples)

	// query is a sub-clip starting 10 frames into the reference: its own
	// local times start at 0.
	query := []fingerprint.Tuple{
		{Hash: "a", LocalTime: 0},
		{Hash: "b", LocalTime: 1},
		{Hash: "c", LocalTime: 2},
		{Hash: "d", LocalTime: 3},
	}

	result, err := Match(ctx, idx, fingerprint.AlgoMaxima, query, 0)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected a match")
	}
	if result.Winner.AlignedOffset != 10 {
		t.Fatalf("expected aligned offset 10, got %d", result.Winner.AlignedOffset)
	}
}

func TestMatchNoMatch(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	result, err := Match(ctx, idx, fingerprint.AlgoMaxima, []fingerprint.Tuple{{Hash: "x", LocalTime: 0}}, 0)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched {
		t.Fatalf("expected NoMatch against an empty index")
	}
}

func TestMatchAlgorithmPartitioning(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	ref, _ := idx.EnsureReference(ctx, "/tmp/song.wav", "song.wav")
	tuples := []fingerprint.Tuple{{Hash: "a", LocalTime: 0}}
	idx.WriteBatch(ctx, ref, fingerprint.AlgoMaxima, tuples)

	result, err := Match(ctx, idx, fingerprint.AlgoChroma, tuples, 0)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Matched {
		t.Fatalf("expected NoMatch when querying under the wrong algorithm")
	}
}

func TestMatchPrefersHigherScore(t *testing.T) {
	idx := index.NewMemoryIndex()
	ctx := context.Background()

	weak, _ := idx.EnsureReference(ctx, "/tmp/weak.wav", "weak.wav")
	strong, _ := idx.EnsureReference(ctx, "/tmp/strong.wav", "strong.wav")

	idx.WriteBatch(ctx, weak, fingerprint.AlgoMaxima, []fingerprint.Tuple{{Hash: "shared", LocalTime: 100}})
	idx.WriteBatch(ctx, strong, fingerprint.AlgoMaxima, []fingerprint.Tuple{
		{Hash: "shared", LocalTime: 5},
		{Hash: "only-strong", LocalTime: 6},
	})

	query := []fingerprint.Tuple{
		{Hash: "shared", LocalTime: 0},
		{Hash: "only-strong", LocalTime: 1},
	}

	result, err := Match(ctx, idx, fingerprint.AlgoMaxima, query, 5)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Winner.ReferenceId != strong {
		t.Fatalf("expected the reference with the taller histogram peak to win")
	}
}
