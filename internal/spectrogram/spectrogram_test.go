package spectrogram

import (
	"math"
	"testing"
)

func sineWave(freq float64, sampleRate, n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return x
}

func TestSTFTShape(t *testing.T) {
	sampleRate := 22050
	nFFT := 1024
	hop := 512
	x := sineWave(1000, sampleRate, sampleRate*2)

	mag := STFT(x, nFFT, hop)

	wantFreqBins := 1 + nFFT/2
	wantFrames := 1 + len(x)/hop
	if mag.FreqBins != wantFreqBins {
		t.Errorf("expected %d freq bins, got %d", wantFreqBins, mag.FreqBins)
	}
	if mag.Frames != wantFrames {
		t.Errorf("expected %d frames, got %d", wantFrames, mag.Frames)
	}
}

func TestSTFTPeaksNearExpectedBin(t *testing.T) {
	sampleRate := 22050
	nFFT := 1024
	hop := 512
	freq := 1000.0
	x := sineWave(freq, sampleRate, sampleRate)

	mag := STFT(x, nFFT, hop)

	midFrame := mag.Frames / 2
	peakBin := 0
	peakVal := 0.0
	for f := 0; f < mag.FreqBins; f++ {
		if mag.Data[f][midFrame] > peakVal {
			peakVal = mag.Data[f][midFrame]
			peakBin = f
		}
	}

	expectedBin := int(math.Round(freq * float64(nFFT) / float64(sampleRate)))
	if diff := peakBin - expectedBin; diff < -2 || diff > 2 {
		t.Errorf("expected peak near bin %d, got %d", expectedBin, peakBin)
	}
}

func TestChromaColumnsNormalized(t *testing.T) {
	sampleRate := 22050
	nFFT := 1024
	hop := 512
	x := sineWave(440, sampleRate, sampleRate)

	mag := STFT(x, nFFT, hop)
	chroma := ChromaFromMagnitude(mag, sampleRate, nFFT)

	for tcol := 0; tcol < chroma.Frames; tcol++ {
		maxVal := 0.0
		for b := 0; b < 12; b++ {
			v := chroma.At(b, tcol)
			if v < 0 || v > 1.0001 {
				t.Fatalf("chroma value out of [0,1] range at (%d,%d): %f", b, tcol, v)
			}
			if v > maxVal {
				maxVal = v
			}
		}
		if maxVal > 0 && math.Abs(maxVal-1.0) > 1e-9 {
			t.Errorf("expected normalized column max of 1.0, got %f at frame %d", maxVal, tcol)
		}
	}
}

func TestPitchClassA4(t *testing.T) {
	if pc := pitchClass(440.0); pc != 9 {
		t.Errorf("expected A4 (440Hz) to map to pitch class 9, got %d", pc)
	}
}
