// Package index implements the content-addressed hash index: the
// per-algorithm multimap from Hash to every (ReferenceId, LocalTime) pair
// that produced it, plus reference metadata.
//
// Grounded on original_source/sqlite_db.py and original_source/redis_db.py,
// generalized per spec.md §9 ("the target adopts a single logical schema —
// algorithm-keyed multimap — and lets implementations choose physical
// layout") instead of the source's per-backend schema divergence.
package index

import (
	"context"
	"errors"

	"audiomark/internal/fingerprint"
)

// ReferenceId is an opaque, monotonically-increasing identifier assigned
// by the Index. Per spec.md §9, the Index is the sole authority for its
// allocation — no extractor or engine code mints one.
type ReferenceId int64

// Reference is a registered audio file's stored metadata.
type Reference struct {
	Id       ReferenceId
	FilePath string
	Filename string
}

// Record is one stored (Hash, ReferenceId, LocalTime) row returned by a
// lookup.
type Record struct {
	Hash        string
	ReferenceId ReferenceId
	LocalTime   int
}

// ErrNotFound is returned by GetReference when no reference has the given id.
var ErrNotFound = errors.New("index: reference not found")

// Index persists and queries fingerprints per algorithm. Every call names
// the algorithm explicitly — spec.md §3 invariant 2 (algorithm
// partitioning) is enforced by storage, not by convention.
type Index interface {
	// EnsureReference idempotently inserts filePath, returning its existing
	// ReferenceId if already present or a freshly allocated one otherwise.
	EnsureReference(ctx context.Context, filePath, filename string) (ReferenceId, error)

	// IsRegistered reports whether at least one fingerprint exists for
	// (filePath, algo).
	IsRegistered(ctx context.Context, filePath string, algo fingerprint.Algorithm) (bool, error)

	// WriteBatch atomically appends tuples for (referenceId, algo). On any
	// error the whole batch is rolled back — none of it is visible.
	WriteBatch(ctx context.Context, referenceId ReferenceId, algo fingerprint.Algorithm, tuples []fingerprint.Tuple) error

	// Lookup returns every stored record under algo whose hash is in hashes.
	Lookup(ctx context.Context, algo fingerprint.Algorithm, hashes []string) ([]Record, error)

	// GetReference returns the stored metadata for id.
	GetReference(ctx context.Context, id ReferenceId) (Reference, error)

	// ClearAll drops every reference and fingerprint.
	ClearAll(ctx context.Context) error

	// Close releases any underlying connection or handle.
	Close() error
}
