// Package matcher implements the histogram-of-offsets scoring and ranking
// rule (C6): given a query's fingerprints and an Index handle, find which
// reference the query most likely came from and at what offset.
//
// Grounded on the _score_potential_matches pattern shared across
// original_source/{maxima_pairing_algorithm,chroma_algorithm,spectral_patch_algorithm}.py
// and the bulk IN-clause lookup in original_source/sqlite_db.py.
package matcher

import (
	"context"
	"sort"

	"audiomark/internal/fingerprint"
	"audiomark/internal/index"
)

// Candidate is a scored reference in descending score order.
type Candidate struct {
	ReferenceId   index.ReferenceId
	Score         int
	AlignedOffset int
}

// Result is the outcome of an identify call. Matched is false iff no
// candidate reference had any hash collision (spec.md §4.6's NoMatch case).
type Result struct {
	Matched    bool
	Winner     Candidate
	RunnersUp  []Candidate
}

// Match scores every reference that shares at least one hash with the
// query against the time-offset histogram rule in spec.md §4.6, and
// returns the ranked result. topK bounds how many runners-up are kept
// alongside the winner; 0 (or less) keeps every runner-up.
func Match(ctx context.Context, idx index.Index, algo fingerprint.Algorithm, query []fingerprint.Tuple, topK int) (Result, error) {
	if len(query) == 0 {
		return Result{Matched: false}, nil
	}

	unique := make(map[string]struct{}, len(query))
	for _, q := range query {
		unique[q.Hash] = struct{}{}
	}
	hashes := make([]string, 0, len(unique))
	for h := range unique {
		hashes = append(hashes, h)
	}

	records, err := idx.Lookup(ctx, algo, hashes)
	if err != nil {
		return Result{}, err
	}
	if len(records) == 0 {
		return Result{Matched: false}, nil
	}

	byHash := make(map[string][]index.Record, len(records))
	for _, r := range records {
		byHash[r.Hash] = append(byHash[r.Hash], r)
	}

	// candidates[referenceId][delta] = count of aligned (t, tau) pairs.
	candidates := make(map[index.ReferenceId]map[int]int)
	for _, q := range query {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		for _, r := range byHash[q.Hash] {
			hist, ok := candidates[r.ReferenceId]
			if !ok {
				hist = make(map[int]int)
				candidates[r.ReferenceId] = hist
			}
			delta := r.LocalTime - q.LocalTime
			hist[delta]++
		}
	}

	scored := make([]Candidate, 0, len(candidates))
	for refID, hist := range candidates {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		bestDelta := 0
		bestCount := -1
		// iterate deltas in sorted order so ties break deterministically
		// toward the smallest delta, per spec.md §4.6.
		deltas := make([]int, 0, len(hist))
		for d := range hist {
			deltas = append(deltas, d)
		}
		sort.Ints(deltas)
		for _, d := range deltas {
			if hist[d] > bestCount {
				bestCount = hist[d]
				bestDelta = d
			}
		}

		scored = append(scored, Candidate{ReferenceId: refID, Score: bestCount, AlignedOffset: bestDelta})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ReferenceId < scored[j].ReferenceId
	})

	result := Result{Matched: true, Winner: scored[0]}
	rest := scored[1:]
	if topK > 0 && len(rest) > topK {
		rest = rest[:topK]
	}
	result.RunnersUp = rest
	return result, nil
}
