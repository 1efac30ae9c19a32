// Package spectrogram computes the STFT magnitude spectrogram and the
// chroma (pitch-class) spectrogram shared by all three fingerprint
// extractors. These are pure functions — no state is carried between calls,
// per spec.md §9's "hoist into free functions" design note.
package spectrogram

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Magnitude is a (1+n_fft/2) x T matrix, S[f][t], grounded on the STFT
// shape convention in spec.md §4.2.
type Magnitude struct {
	Data     [][]float64 // Data[f][t]
	FreqBins int
	Frames   int
}

// At returns S[f, t].
func (m Magnitude) At(f, t int) float64 { return m.Data[f][t] }

// hannWindow returns a centered Hann window of length n, w(i) = 0.5*(1-cos(2*pi*i/(n-1))).
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// STFT computes the magnitude spectrogram using a Hann window of length
// nFFT centered on each frame, with the signal zero-padded by nFFT/2 on
// each edge so frame t is centered on sample t*hopLength (the first frame
// on sample 0, the last on floor(len(x)/hopLength)*hopLength) — matching
// the "centered" STFT convention
// spec.md §4.2 requires to agree with a canonical reference implementation.
func STFT(x []float64, nFFT, hopLength int) Magnitude {
	half := nFFT / 2
	padded := make([]float64, half+len(x)+half)
	copy(padded[half:half+len(x)], x)

	frames := 1 + len(x)/hopLength
	freqBins := 1 + nFFT/2
	window := hannWindow(nFFT)

	data := make([][]float64, freqBins)
	for f := range data {
		data[f] = make([]float64, frames)
	}

	frameBuf := make([]float64, nFFT)
	complexBuf := make([]complex128, nFFT)

	for t := 0; t < frames; t++ {
		start := t * hopLength
		end := start + nFFT
		if end > len(padded) {
			// zero-pad the final frame if it runs past the padded signal
			for i := range frameBuf {
				frameBuf[i] = 0
			}
			copy(frameBuf, padded[start:])
		} else {
			copy(frameBuf, padded[start:end])
		}

		for i := 0; i < nFFT; i++ {
			complexBuf[i] = complex(frameBuf[i]*window[i], 0)
		}

		spectrum := fft.FFT(complexBuf)
		for f := 0; f < freqBins; f++ {
			data[f][t] = cmplx.Abs(spectrum[f])
		}
	}

	return Magnitude{Data: data, FreqBins: freqBins, Frames: frames}
}

// pitchClass maps a frequency in Hz to its equal-tempered pitch class
// (0 = C, 1 = C#, ... 11 = B), using A4 = 440 Hz as the reference per the
// standard MIDI-note convention.
func pitchClass(freqHz float64) int {
	if freqHz <= 0 {
		return 0
	}
	midi := 12*math.Log2(freqHz/440.0) + 69
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return pc
}

// Chroma is a 12 x T non-negative matrix, each column normalized so its
// maximum lies in [0, 1], per spec.md §4.2.
type Chroma struct {
	Data   [12][]float64
	Frames int
}

// At returns chroma[b, t].
func (c Chroma) At(b, t int) float64 { return c.Data[b][t] }

// ChromaFromMagnitude folds a linear-frequency magnitude spectrogram onto
// 12 pitch classes using equal-tempered bin weights, then normalizes each
// column so its max value is 1 (or left at zero if the column is silent).
func ChromaFromMagnitude(mag Magnitude, sampleRate, nFFT int) Chroma {
	c := Chroma{Frames: mag.Frames}
	for b := range c.Data {
		c.Data[b] = make([]float64, mag.Frames)
	}

	freqRes := float64(sampleRate) / float64(nFFT)
	for f := 0; f < mag.FreqBins; f++ {
		freq := float64(f) * freqRes
		pc := pitchClass(freq)
		for t := 0; t < mag.Frames; t++ {
			c.Data[pc][t] += mag.Data[f][t]
		}
	}

	for t := 0; t < mag.Frames; t++ {
		maxVal := 0.0
		for b := 0; b < 12; b++ {
			if c.Data[b][t] > maxVal {
				maxVal = c.Data[b][t]
			}
		}
		if maxVal <= 0 {
			continue
		}
		for b := 0; b < 12; b++ {
			c.Data[b][t] /= maxVal
		}
	}

	return c
}
