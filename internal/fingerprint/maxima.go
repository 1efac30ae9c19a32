package fingerprint

import (
	"context"

	"audiomark/internal/audioio"
	"audiomark/internal/peaks"
	"audiomark/internal/spectrogram"
)

// MaximaParams configures the Maxima-Pairing extractor, grounded on
// original_source/maxima_pairing_algorithm.py's constructor arguments.
type MaximaParams struct {
	SampleRate       int
	NFFT             int
	HopLength        int
	NeighborhoodSize int
	MinAmplitude     float64
	TargetTMin       int
	TargetTMax       int
	TargetFMaxDelta  int
	Hash             HashKind
}

// MaximaExtractor is the Shazam-style combinatorial anchor/target pairing
// extractor, spec.md §4.4.1.
type MaximaExtractor struct {
	Params MaximaParams
}

func NewMaximaExtractor(p MaximaParams) *MaximaExtractor {
	return &MaximaExtractor{Params: p}
}

func (e *MaximaExtractor) Algorithm() Algorithm { return AlgoMaxima }

// Extract loads the signal, computes its magnitude spectrogram, picks
// local-maxima peaks, and emits one fingerprint per qualifying
// anchor/target pair.
//
// Grounded on original_source/maxima_pairing_algorithm.py's
// _generate_fingerprints: for each anchor peak, scan forward through
// time-sorted peaks and stop as soon as the time delta exceeds
// target_t_max — the dominant cost saver that keeps this sub-quadratic in
// practice.
func (e *MaximaExtractor) Extract(ctx context.Context, loader audioio.Loader, path string, win audioio.Window) ([]Tuple, error) {
	p := e.Params

	sig, err := loader.Load(ctx, path, p.SampleRate, win)
	if err != nil {
		return nil, &ExtractError{State: StateLoading, Err: err}
	}

	mag := spectrogram.STFT(sig.Samples, p.NFFT, p.HopLength)
	pts := peaks.Pick(mag, p.NeighborhoodSize, p.MinAmplitude)

	var tuples []Tuple
	for i, anchor := range pts {
		if ctx.Err() != nil {
			return nil, &ExtractError{State: StateExtracting, Err: ctx.Err()}
		}

		for j := i + 1; j < len(pts); j++ {
			target := pts[j]
			dt := target.Time - anchor.Time
			if dt > p.TargetTMax {
				break
			}
			if dt < p.TargetTMin {
				continue
			}
			df := target.Freq - anchor.Freq
			if df < 0 {
				df = -df
			}
			if df > p.TargetFMaxDelta {
				continue
			}

			tuples = append(tuples, Tuple{
				Hash:      hashInts(p.Hash, anchor.Freq, target.Freq, dt),
				LocalTime: anchor.Time,
			})
		}
	}

	return tuples, nil
}
