package engine

import (
	"context"
	"fmt"

	"audiomark/internal/config"
	"audiomark/internal/fingerprint"
	"audiomark/internal/index"
)

// BuildExtractor constructs the Extractor named by algo using cfg's shared
// STFT parameters and the per-algorithm tunables. Both the CLI and the
// HTTP API go through this single factory so a registration and a later
// identification of the same file can never silently diverge in anything
// but the parameters the caller explicitly changed.
func BuildExtractor(cfg config.Config, algo fingerprint.Algorithm) (fingerprint.Extractor, error) {
	hash := fingerprint.HashKind(cfg.HashAlgorithm)

	switch algo {
	case fingerprint.AlgoMaxima:
		return fingerprint.NewMaximaExtractor(fingerprint.MaximaParams{
			SampleRate:       cfg.SampleRate,
			NFFT:             cfg.NFFT,
			HopLength:        cfg.HopLength,
			NeighborhoodSize: cfg.Maxima.NeighborhoodSize,
			MinAmplitude:     cfg.Maxima.MinAmplitude,
			TargetTMin:       cfg.Maxima.TargetTMin,
			TargetTMax:       cfg.Maxima.TargetTMax,
			TargetFMaxDelta:  cfg.Maxima.TargetFMaxDelta,
			Hash:             hash,
		}), nil
	case fingerprint.AlgoPatch:
		return fingerprint.NewPatchExtractor(fingerprint.PatchParams{
			SampleRate:     cfg.SampleRate,
			NFFT:           cfg.NFFT,
			HopLength:      cfg.HopLength,
			PatchSize:      cfg.Patch.PatchSize,
			MinPatchEnergy: cfg.Patch.MinPatchEnergy,
			Hash:           hash,
		}), nil
	case fingerprint.AlgoChroma:
		return fingerprint.NewChromaExtractor(fingerprint.ChromaParams{
			SampleRate: cfg.SampleRate,
			NFFT:       cfg.NFFT,
			HopLength:  cfg.HopLength,
			Threshold:  cfg.Chroma.Threshold,
			Hash:       hash,
		}), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algo)
	}
}

// OpenIndex opens the Index backend named by cfg.Store.Kind.
func OpenIndex(ctx context.Context, cfg config.Config) (index.Index, error) {
	switch cfg.Store.Kind {
	case "", "sqlite":
		return index.NewSQLiteIndex(cfg.Store.DSN)
	case "redis":
		return index.NewRedisIndex(cfg.Store.DSN)
	case "mongo":
		return index.NewMongoIndex(ctx, cfg.Store.DSN, "audiomark")
	case "memory":
		return index.NewMemoryIndex(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}
