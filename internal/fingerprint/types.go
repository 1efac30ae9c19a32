// Package fingerprint implements the three interchangeable descriptor
// extractors — Maxima-Pairing, Spectral-Patch, Chroma-Dominant-Bin — that
// turn a decoded signal into a sequence of (Hash, LocalTime) tuples.
//
// Grounded on original_source/fingerprint_algorithm.py's abstract base
// (_calculate_spectrogram, _load_and_preprocess_audio, _cut_audio) and its
// three concrete subclasses, with the extractor modeled as a small Go
// interface per spec.md §9 rather than class inheritance.
package fingerprint

import (
	"context"
	"fmt"

	"audiomark/internal/audioio"
)

// Algorithm names the three extractor variants. It is carried end-to-end
// through the engine and index so registrations and queries never cross
// algorithms silently.
type Algorithm string

const (
	AlgoMaxima Algorithm = "maxima"
	AlgoPatch  Algorithm = "patch"
	AlgoChroma Algorithm = "chroma"
)

// Tuple is one (Hash, LocalTime) fingerprint. LocalTime is always an
// integer count of spectrogram frames, never decoded from raw bytes — see
// original_source/redis_db.py's sys.byteorder pitfall, which this type
// structurally avoids.
type Tuple struct {
	Hash      string
	LocalTime int
}

// State is the extraction state machine named in spec.md §4.4.3: all
// variants move Idle -> Loading -> Transforming -> Extracting -> Done, or
// fault out of any state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateTransforming
	StateExtracting
	StateDone
	StateFaulted
)

// Extractor produces fingerprints from an audio file. Implementations are
// stateless between calls — parameters live on the value, not on any
// mutable field — so a single Extractor may be invoked concurrently by
// multiple workers.
type Extractor interface {
	Algorithm() Algorithm
	// Extract loads path (optionally windowed to [startS, endS) when win.Set
	// is true), computes the variant's spectrogram representation, and
	// returns its fingerprint tuples. A zero-length, nil-error result means
	// the signal decoded fine but yielded no fingerprints (NoPeaks /
	// NoFingerprints in the error taxonomy — not an error).
	Extract(ctx context.Context, loader audioio.Loader, path string, win audioio.Window) ([]Tuple, error)
}

// ExtractError wraps a fault raised during extraction with the state it
// occurred in, so callers can distinguish IoError/DecodeError from a plain
// empty result.
type ExtractError struct {
	State State
	Err   error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("fingerprint extraction faulted in state %d: %v", e.State, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }
