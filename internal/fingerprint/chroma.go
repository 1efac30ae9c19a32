package fingerprint

import (
	"context"

	"audiomark/internal/audioio"
	"audiomark/internal/spectrogram"
)

// ChromaParams configures the Chroma-Dominant-Bin extractor, grounded on
// original_source/chroma_algorithm.py's constructor arguments.
type ChromaParams struct {
	SampleRate int
	NFFT       int
	HopLength  int
	Threshold  float64
	Hash       HashKind
}

// ChromaExtractor emits one fingerprint per spectrogram column whose
// dominant pitch class clears a threshold, spec.md §4.4.3.
type ChromaExtractor struct {
	Params ChromaParams
}

func NewChromaExtractor(p ChromaParams) *ChromaExtractor {
	return &ChromaExtractor{Params: p}
}

func (e *ChromaExtractor) Algorithm() Algorithm { return AlgoChroma }

func (e *ChromaExtractor) Extract(ctx context.Context, loader audioio.Loader, path string, win audioio.Window) ([]Tuple, error) {
	p := e.Params

	sig, err := loader.Load(ctx, path, p.SampleRate, win)
	if err != nil {
		return nil, &ExtractError{State: StateLoading, Err: err}
	}

	mag := spectrogram.STFT(sig.Samples, p.NFFT, p.HopLength)
	chroma := spectrogram.ChromaFromMagnitude(mag, p.SampleRate, p.NFFT)

	var tuples []Tuple
	for t := 0; t < chroma.Frames; t++ {
		if ctx.Err() != nil {
			return nil, &ExtractError{State: StateExtracting, Err: ctx.Err()}
		}

		maxVal := -1.0
		dominant := 0
		for b := 0; b < 12; b++ {
			v := chroma.At(b, t)
			if v > maxVal {
				maxVal = v
				dominant = b
			}
		}
		if maxVal < p.Threshold {
			continue
		}

		tuples = append(tuples, Tuple{
			Hash:      hashInts(p.Hash, dominant, t),
			LocalTime: t,
		})
	}

	return tuples, nil
}
