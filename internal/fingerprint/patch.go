package fingerprint

import (
	"context"
	"encoding/binary"
	"math"

	"audiomark/internal/audioio"
	"audiomark/internal/spectrogram"
)

// PatchParams configures the Spectral-Patch extractor, grounded on
// original_source/spectral_patch_algorithm.py's constructor arguments.
type PatchParams struct {
	SampleRate     int
	NFFT           int
	HopLength      int
	PatchSize      int
	MinPatchEnergy float64
	Hash           HashKind
}

// PatchExtractor hashes non-overlapping tiles of the magnitude
// spectrogram, spec.md §4.4.2.
type PatchExtractor struct {
	Params PatchParams
}

func NewPatchExtractor(p PatchParams) *PatchExtractor {
	return &PatchExtractor{Params: p}
}

func (e *PatchExtractor) Algorithm() Algorithm { return AlgoPatch }

// Extract tiles the spectrogram into PatchSize x PatchSize squares and
// hashes the bytes of each patch whose mean energy clears MinPatchEnergy.
//
// Unlike original_source/spectral_patch_algorithm.py, which dumps native
// float64 bytes (platform- and language-dependent), this pins the patch
// encoding to little-endian float32 per spec.md §4.4.2's explicit
// reproducibility requirement.
func (e *PatchExtractor) Extract(ctx context.Context, loader audioio.Loader, path string, win audioio.Window) ([]Tuple, error) {
	p := e.Params

	sig, err := loader.Load(ctx, path, p.SampleRate, win)
	if err != nil {
		return nil, &ExtractError{State: StateLoading, Err: err}
	}

	mag := spectrogram.STFT(sig.Samples, p.NFFT, p.HopLength)
	size := p.PatchSize

	var tuples []Tuple
	buf := make([]byte, 4*size*size)

	for q := 0; (q+1)*size <= mag.Frames; q++ {
		for pp := 0; (pp+1)*size <= mag.FreqBins; pp++ {
			if ctx.Err() != nil {
				return nil, &ExtractError{State: StateExtracting, Err: ctx.Err()}
			}

			sum := 0.0
			n := 0
			for df := 0; df < size; df++ {
				for dt := 0; dt < size; dt++ {
					sum += mag.Data[pp*size+df][q*size+dt]
					n++
				}
			}
			energy := sum / float64(n)
			if energy < p.MinPatchEnergy {
				continue
			}

			idx := 0
			for df := 0; df < size; df++ {
				for dt := 0; dt < size; dt++ {
					bits := math.Float32bits(float32(mag.Data[pp*size+df][q*size+dt]))
					binary.LittleEndian.PutUint32(buf[idx:idx+4], bits)
					idx += 4
				}
			}

			tuples = append(tuples, Tuple{
				Hash:      digest(p.Hash, buf),
				LocalTime: q * size,
			})
		}
	}

	return tuples, nil
}
