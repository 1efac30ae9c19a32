package engine

import (
	"context"
	"math"
	"testing"

	"audiomark/internal/audioio"
	"audiomark/internal/fingerprint"
	"audiomark/internal/index"
)

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
	total := int(l.seconds * float64(sr))
	samples := make([]float64, total)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * l.freq * float64(i) / float64(sr))
	}

	sig := audioio.Signal{Samples: samples, SampleRate: sr}
	if win.Set {
		start := int(win.Start * float64(sr))
		end := int(win.End * float64(sr))
		if start < 0 {
			start = 0
		}
		if end > len(sig.Samples) {
			end = len(sig.Samples)
		}
		if start < end {
			sig = audioio.Signal{Samples: sig.Samples[start:end], SampleRate: sr}
		}
	}
	return sig, nil
}

func newTestExtractor() *fingerprint.MaximaExtractor {
	return fingerprint.NewMaximaExtractor(fingerprint.MaximaParams{
		SampleRate: 22050, NFFT: 1024, HopLength: 512,
		NeighborhoodSize: 20, MinAmplitude: 0.05,
		TargetTMin: 5, TargetTMax: 40, TargetFMaxDelta: 100,
		Hash: fingerprint.HashSHA1,
	})
}

func TestEngineRegisterAndSelfIdentify(t *testing.T) {
	ctx := context.Background()
	eng := New(sineLoader{freq: 1000, sampleRate: 22050, seconds: 10}, index.NewMemoryIndex(), 0)
	extractor := newTestExtractor()

	reg, err := eng.Register(ctx, extractor, "/tmp/tone.wav")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if reg.FingerprintCnt == 0 {
		t.Fatalf("expected fingerprints from registration")
	}

	result, err := eng.Identify(ctx, extractor, "/tmp/tone.wav", audioio.Window{}, 0)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected self-identification to match")
	}
	if result.Winner.ReferenceId != reg.ReferenceId {
		t.Fatalf("expected winner %d, got %d", reg.ReferenceId, result.Winner.ReferenceId)
	}
	if result.Winner.Score != reg.FingerprintCnt {
		t.Fatalf("expected perfect self-identification score %d, got %d", reg.FingerprintCnt, result.Winner.Score)
	}
	if result.Reference.FilePath != "/tmp/tone.wav" {
		t.Fatalf("expected resolved reference metadata, got %+v", result.Reference)
	}
}

func TestEngineRegisterIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := New(sineLoader{freq: 1000, sampleRate: 22050, seconds: 10}, index.NewMemoryIndex(), 0)
	extractor := newTestExtractor()

	first, err := eng.Register(ctx, extractor, "/tmp/tone.wav")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := eng.Register(ctx, extractor, "/tmp/tone.wav")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if first.ReferenceId != second.ReferenceId {
		t.Fatalf("expected same reference id on re-registration")
	}
	if !second.AlreadyExisted {
		t.Fatalf("expected second registration to short-circuit")
	}
}

func TestEngineIdentifySubClipOffset(t *testing.T) {
	ctx := context.Background()
	eng := New(sineLoader{freq: 1000, sampleRate: 22050, seconds: 10}, index.NewMemoryIndex(), 0)
	extractor := newTestExtractor()

	if _, err := eng.Register(ctx, extractor, "/tmp/tone.wav"); err != nil {
		t.Fatalf("register: %v", err)
	}

	win := audioio.Window{Start: 2, End: 4, Set: true}
	result, err := eng.Identify(ctx, extractor, "/tmp/tone.wav", win, 0)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if !result.Matched {
		t.Fatalf("expected sub-clip identification to match")
	}

	expected := int(math.Round(2 * 22050.0 / 512.0))
	if diff := result.Winner.AlignedOffset - expected; diff < -1 || diff > 1 {
		t.Fatalf("expected aligned offset near %d, got %d", expected, result.Winner.AlignedOffset)
	}
}

func TestEngineRegisterAllRegistersEveryPath(t *testing.T) {
	ctx := context.Background()
	eng := New(sineLoader{freq: 1000, sampleRate: 22050, seconds: 2}, index.NewMemoryIndex(), 0)
	extractor := newTestExtractor()

	results := eng.RegisterAll(ctx, extractor, []string{"/tmp/a.wav", "/tmp/b.wav", "/tmp/c.wav"}, nil)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error for %s: %v", r.Path, r.Err)
		}
	}
}
