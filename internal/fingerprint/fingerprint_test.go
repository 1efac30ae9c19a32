package fingerprint

import (
	"context"
	"math"
	"testing"

	"audiomark/internal/audioio"
)

// sineLoader is a fake audioio.Loader that ignores the path and returns a
// synthetic sine wave, letting extractor tests run without real files on
// disk or the ffmpeg/wav/flac decode paths.
type sineLoader struct {
	freq       float64
	sampleRate int
	seconds    float64
}

func (l sineLoader) Load(ctx context.Context, path string, targetSampleRate int, win audioio.Window) (audioio.Signal, error) {
	sr := targetSampleRate
	if sr <= 0 {
		sr = l.sampleRate
	}
	n := int(l.seconds * float64(sr))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * l.freq * float64(i) / float64(sr))
	}
	return audioio.Signal{Samples: samples, SampleRate: sr}, nil
}

func TestMaximaExtractorSineProducesFingerprints(t *testing.T) {
	ex := NewMaximaExtractor(MaximaParams{
		SampleRate:       22050,
		NFFT:             1024,
		HopLength:        512,
		NeighborhoodSize: 20,
		MinAmplitude:     0.05,
		TargetTMin:       5,
		TargetTMax:       40,
		TargetFMaxDelta:  100,
		Hash:             HashSHA1,
	})
	loader := sineLoader{freq: 1000, sampleRate: 22050, seconds: 10}

	tuples, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(tuples) == 0 {
		t.Fatalf("expected at least one fingerprint for a 10s tone")
	}
}

func TestMaximaExtractorDeterministic(t *testing.T) {
	ex := NewMaximaExtractor(MaximaParams{
		SampleRate: 22050, NFFT: 1024, HopLength: 512,
		NeighborhoodSize: 20, MinAmplitude: 0.05,
		TargetTMin: 5, TargetTMax: 40, TargetFMaxDelta: 100,
		Hash: HashSHA1,
	})
	loader := sineLoader{freq: 1000, sampleRate: 22050, seconds: 5}

	a, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	b, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if len(a) != len(b) {
		t.Fatalf("non-deterministic fingerprint count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic fingerprint at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestChromaExtractorThreshold(t *testing.T) {
	ex := NewChromaExtractor(ChromaParams{
		SampleRate: 22050, NFFT: 1024, HopLength: 512,
		Threshold: 1.1, // unreachable since columns normalize to max 1
		Hash:      HashSHA1,
	})
	loader := sineLoader{freq: 440, sampleRate: 22050, seconds: 2}

	tuples, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(tuples) != 0 {
		t.Fatalf("expected no fingerprints above an unreachable threshold, got %d", len(tuples))
	}
}

func TestChromaExtractorEmitsBelowMax(t *testing.T) {
	ex := NewChromaExtractor(ChromaParams{
		SampleRate: 22050, NFFT: 1024, HopLength: 512,
		Threshold: 0.6,
		Hash:      HashSHA1,
	})
	loader := sineLoader{freq: 440, sampleRate: 22050, seconds: 2}

	tuples, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(tuples) == 0 {
		t.Fatalf("expected fingerprints for a steady 440Hz tone at threshold 0.6")
	}
}

func TestPatchExtractorEnergyGating(t *testing.T) {
	ex := NewPatchExtractor(PatchParams{
		SampleRate: 22050, NFFT: 1024, HopLength: 512,
		PatchSize: 16, MinPatchEnergy: 1e9, // unreachable
		Hash: HashSHA1,
	})
	loader := sineLoader{freq: 1000, sampleRate: 22050, seconds: 5}

	tuples, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(tuples) != 0 {
		t.Fatalf("expected no patches above an unreachable energy threshold, got %d", len(tuples))
	}
}

func TestPatchExtractorProducesTuples(t *testing.T) {
	ex := NewPatchExtractor(PatchParams{
		SampleRate: 22050, NFFT: 1024, HopLength: 512,
		PatchSize: 16, MinPatchEnergy: 0.001,
		Hash: HashSHA1,
	})
	loader := sineLoader{freq: 1000, sampleRate: 22050, seconds: 5}

	tuples, err := ex.Extract(context.Background(), loader, "synthetic.wav", audioio.Window{})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(tuples) == 0 {
		t.Fatalf("expected at least one emitted patch")
	}
}
