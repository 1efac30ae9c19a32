// Package engine implements the EngineFacade (C7): a thin coordinator
// exposing register/identify over an AudioLoader, a FingerprintExtractor,
// and an Index. The extractor's algorithm is carried into every Index call,
// so a query only ever meets fingerprints of its own algorithm; the
// extractor's parameters are not recorded or compared between the two
// flows, and a parameter mismatch produces no warning (see Identify).
//
// Grounded on tefkah-seek-tune/server/cmdHandlers.go's save/find/
// processFilesConcurrently flow, generalized to the multi-algorithm,
// multi-backend shape spec.md §4.7 and §5 require.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"audiomark/internal/audioio"
	"audiomark/internal/fingerprint"
	"audiomark/internal/index"
	"audiomark/internal/logging"
	"audiomark/internal/matcher"

	"github.com/mdobak/go-xerrors"
)

// Engine orchestrates registration and identification. It holds no
// per-call mutable state, so a single Engine may be shared across
// concurrent register/identify calls.
type Engine struct {
	Loader     audioio.Loader
	Index      index.Index
	MaxWorkers int // 0 means runtime.NumCPU()
}

// New builds an Engine backed by loader and idx.
func New(loader audioio.Loader, idx index.Index, maxWorkers int) *Engine {
	return &Engine{Loader: loader, Index: idx, MaxWorkers: maxWorkers}
}

// RegisterResult reports the outcome of registering one file.
type RegisterResult struct {
	ReferenceId    index.ReferenceId
	FingerprintCnt int
	AlreadyExisted bool
}

// Register fingerprints path under extractor's algorithm and writes the
// batch to the Index. If (path, algorithm) is already registered, it
// short-circuits and returns the existing ReferenceId — spec.md §4.7(ii).
func (e *Engine) Register(ctx context.Context, extractor fingerprint.Extractor, path string) (RegisterResult, error) {
	algo := extractor.Algorithm()

	already, err := e.Index.IsRegistered(ctx, path, algo)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("checking registration: %w", err)
	}

	refID, err := e.Index.EnsureReference(ctx, path, filepath.Base(path))
	if err != nil {
		return RegisterResult{}, fmt.Errorf("ensuring reference: %w", err)
	}

	if already {
		return RegisterResult{ReferenceId: refID, AlreadyExisted: true}, nil
	}

	tuples, err := extractor.Extract(ctx, e.Loader, path, audioio.Window{})
	if err != nil {
		return RegisterResult{}, fmt.Errorf("extracting fingerprints: %w", err)
	}

	if err := e.Index.WriteBatch(ctx, refID, algo, tuples); err != nil {
		return RegisterResult{}, fmt.Errorf("writing fingerprint batch: %w", err)
	}

	return RegisterResult{ReferenceId: refID, FingerprintCnt: len(tuples)}, nil
}

// BulkResult is the per-file outcome of a RegisterAll call.
type BulkResult struct {
	Path   string
	Result RegisterResult
	Err    error
}

// RegisterAll fingerprints every path concurrently using a worker pool
// sized min(NumCPU, MaxWorkers) (0 means uncapped at NumCPU), grounded on
// tefkah-seek-tune/server/cmdHandlers.go's processFilesConcurrently.
// Per spec.md §4.7(iii), a decode failure on one file does not abort the
// rest — it is reported in that file's BulkResult and processing
// continues.
//
// onProgress, if non-nil, is invoked once per completed file (in
// completion order, not input order) so a caller can drive a progress
// indicator; it is called from RegisterAll's own goroutine, one call at a
// time, never from the workers.
func (e *Engine) RegisterAll(ctx context.Context, extractor fingerprint.Extractor, paths []string, onProgress func(BulkResult)) []BulkResult {
	if len(paths) == 0 {
		return nil
	}

	workers := runtime.NumCPU()
	if e.MaxWorkers > 0 && e.MaxWorkers < workers {
		workers = e.MaxWorkers
	}
	if workers > len(paths) {
		workers = len(paths)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string, len(paths))
	results := make(chan BulkResult, len(paths))

	for w := 0; w < workers; w++ {
		go func() {
			for p := range jobs {
				if ctx.Err() != nil {
					results <- BulkResult{Path: p, Err: ctx.Err()}
					continue
				}
				r, err := e.Register(ctx, extractor, p)
				if err != nil {
					err = xerrors.WithStackTrace(err)
				}
				results <- BulkResult{Path: p, Result: r, Err: err}
			}
		}()
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	out := make([]BulkResult, len(paths))
	for i := range paths {
		br := <-results
		out[i] = br
		if br.Err != nil {
			logging.Get().Error("registration failed", slog.String("path", br.Path), slog.Any("error", br.Err))
		}
		if onProgress != nil {
			onProgress(br)
		}
	}
	return out
}

// IdentifyResult is the outcome of an Identify call, enriched with the
// matched reference's stored metadata.
type IdentifyResult struct {
	matcher.Result
	Reference index.Reference
}

// Identify fingerprints the query audio at path (optionally windowed) and
// matches it against the Index under extractor's algorithm. ParamMismatch
// (spec.md §7) is not detectable structurally here — the caller is
// responsible for passing the same extractor configuration used at
// registration time; a mismatch manifests as NoMatch or a spurious low
// score, not an error.
func (e *Engine) Identify(ctx context.Context, extractor fingerprint.Extractor, path string, win audioio.Window, topK int) (IdentifyResult, error) {
	tuples, err := extractor.Extract(ctx, e.Loader, path, win)
	if err != nil {
		return IdentifyResult{}, fmt.Errorf("extracting query fingerprints: %w", err)
	}

	result, err := matcher.Match(ctx, e.Index, extractor.Algorithm(), tuples, topK)
	if err != nil {
		return IdentifyResult{}, fmt.Errorf("matching query: %w", err)
	}

	out := IdentifyResult{Result: result}
	if result.Matched {
		ref, err := e.Index.GetReference(ctx, result.Winner.ReferenceId)
		if err != nil {
			return IdentifyResult{}, fmt.Errorf("resolving matched reference: %w", err)
		}
		out.Reference = ref
	}
	return out, nil
}
