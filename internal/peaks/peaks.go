// Package peaks implements the 2-D local-maximum filter over a magnitude
// spectrogram used by the Maxima-Pairing fingerprint extractor.
package peaks

import (
	"sort"

	"audiomark/internal/spectrogram"
)

// Peak is a local maximum of the magnitude spectrogram.
type Peak struct {
	Freq int // frequency bin index
	Time int // time frame index
}

// Pick returns every (f, t) such that S[f,t] equals the max over the
// neighborhoodSize x neighborhoodSize window centered on it (zero-padded at
// the edges) and S[f,t] >= minAmplitude. Ties within a neighborhood are all
// kept as peaks. The result is sorted by (t, f) ascending — the
// Maxima-Pairing extractor's early-termination loop depends on this order.
//
// Grounded on original_source/maxima_pairing_algorithm.py's
// _find_spectrogram_peaks (scipy.ndimage.maximum_filter with mode='constant',
// cval=0.0) and kshitijk4poor-shazam-golang/pkg/fingerprint/peak.go's
// neighborhood scan.
func Pick(mag spectrogram.Magnitude, neighborhoodSize int, minAmplitude float64) []Peak {
	half := neighborhoodSize / 2

	var result []Peak
	for f := 0; f < mag.FreqBins; f++ {
		for t := 0; t < mag.Frames; t++ {
			val := mag.Data[f][t]
			if val < minAmplitude {
				continue
			}

			isMax := true
			for df := -half; df <= half && isMax; df++ {
				nf := f + df
				if nf < 0 || nf >= mag.FreqBins {
					// zero-padded edge: val must be >= 0 to stay a candidate,
					// which min-amplitude filtering above already guarantees
					// for any meaningful threshold.
					continue
				}
				for dt := -half; dt <= half; dt++ {
					nt := t + dt
					if nt < 0 || nt >= mag.Frames {
						continue
					}
					if mag.Data[nf][nt] > val {
						isMax = false
						break
					}
				}
			}

			if isMax {
				result = append(result, Peak{Freq: f, Time: t})
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].Freq < result[j].Freq
	})

	return result
}
