package peaks

import (
	"testing"

	"audiomark/internal/spectrogram"
)

func gridMagnitude(rows, cols int, fn func(f, t int) float64) spectrogram.Magnitude {
	data := make([][]float64, rows)
	for f := range data {
		data[f] = make([]float64, cols)
		for t := range data[f] {
			data[f][t] = fn(f, t)
		}
	}
	return spectrogram.Magnitude{Data: data, FreqBins: rows, Frames: cols}
}

func TestPickSingleSpike(t *testing.T) {
	mag := gridMagnitude(9, 9, func(f, t int) float64 {
		if f == 4 && t == 4 {
			return 1.0
		}
		return 0.01
	})

	got := Pick(mag, 3, 0.05)
	if len(got) != 1 {
		t.Fatalf("expected 1 peak, got %d: %v", len(got), got)
	}
	if got[0].Freq != 4 || got[0].Time != 4 {
		t.Errorf("expected peak at (4,4), got (%d,%d)", got[0].Freq, got[0].Time)
	}
}

func TestPickRespectsMinAmplitude(t *testing.T) {
	mag := gridMagnitude(5, 5, func(f, t int) float64 { return 0.01 })
	got := Pick(mag, 3, 0.05)
	if len(got) != 0 {
		t.Fatalf("expected no peaks below threshold, got %d", len(got))
	}
}

func TestPickTiesAllQualify(t *testing.T) {
	mag := gridMagnitude(4, 4, func(f, t int) float64 { return 1.0 })
	got := Pick(mag, 3, 0.5)
	if len(got) != 16 {
		t.Fatalf("expected all 16 equal points to be peaks, got %d", len(got))
	}
}

func TestPickSortedByTimeThenFreq(t *testing.T) {
	mag := gridMagnitude(6, 6, func(f, t int) float64 {
		if (f == 1 && t == 1) || (f == 3 && t == 1) || (f == 2 && t == 4) {
			return 1.0
		}
		return 0
	})

	got := Pick(mag, 3, 0.5)
	if len(got) != 3 {
		t.Fatalf("expected 3 peaks, got %d: %v", len(got), got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Time > got[i].Time {
			t.Fatalf("peaks not sorted by time: %v", got)
		}
		if got[i-1].Time == got[i].Time && got[i-1].Freq > got[i].Freq {
			t.Fatalf("peaks not sorted by freq within same time: %v", got)
		}
	}
}
