// Package config loads engine and service parameters from a YAML file,
// with environment variable overrides for deployment secrets (store DSNs).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mdobak/go-xerrors"
	"gopkg.in/yaml.v3"
)

// MaximaParams holds the Maxima-Pairing extractor's tunables.
type MaximaParams struct {
	NeighborhoodSize int     `yaml:"neighborhood_size"`
	MinAmplitude     float64 `yaml:"min_amplitude"`
	TargetTMin       int     `yaml:"target_t_min"`
	TargetTMax       int     `yaml:"target_t_max"`
	TargetFMaxDelta  int     `yaml:"target_f_max_delta"`
}

// PatchParams holds the Spectral-Patch extractor's tunables.
type PatchParams struct {
	PatchSize      int     `yaml:"patch_size"`
	MinPatchEnergy float64 `yaml:"min_patch_energy"`
}

// ChromaParams holds the Chroma-Dominant-Bin extractor's tunables.
type ChromaParams struct {
	Threshold float64 `yaml:"threshold"`
}

// StoreConfig selects and configures an Index backend.
type StoreConfig struct {
	// Kind is one of "sqlite", "redis", "mongo", "memory".
	Kind string `yaml:"kind"`
	// DSN is the backend-specific connection string: a file path for
	// sqlite, "host:port" for redis, a mongo URI for mongo. Ignored for
	// memory. May be overridden by the AUDIOMARK_STORE_DSN env var.
	DSN string `yaml:"dsn"`
}

// Config is the full engine configuration, loaded from YAML and optionally
// patched by environment variables for values that shouldn't live in a
// checked-in file (connection strings in particular).
type Config struct {
	SampleRate    int    `yaml:"sample_rate"`
	NFFT          int    `yaml:"n_fft"`
	HopLength     int    `yaml:"hop_length"`
	HashAlgorithm string `yaml:"hash_algorithm"` // "sha1" or "sha256"

	Maxima MaximaParams `yaml:"maxima"`
	Patch  PatchParams  `yaml:"patch"`
	Chroma ChromaParams `yaml:"chroma"`

	Store StoreConfig `yaml:"store"`

	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the parameters used throughout spec.md's "concrete
// scenarios" section: a 22050 Hz / 1024-sample-window configuration tuned
// for short music clips.
func Default() Config {
	return Config{
		SampleRate:    22050,
		NFFT:          1024,
		HopLength:     512,
		HashAlgorithm: "sha1",
		Maxima: MaximaParams{
			NeighborhoodSize: 20,
			MinAmplitude:     0.05,
			TargetTMin:       5,
			TargetTMax:       40,
			TargetFMaxDelta:  100,
		},
		Patch: PatchParams{
			PatchSize:      16,
			MinPatchEnergy: 0.01,
		},
		Chroma: ChromaParams{
			Threshold: 0.6,
		},
		Store: StoreConfig{
			Kind: "sqlite",
			DSN:  "audiomark.db",
		},
		Workers:  0, // 0 means runtime.NumCPU()
		LogLevel: "info",
	}
}

// Load reads a YAML config file at path, falling back to Default() for any
// zero-valued field the file omits, then applies environment overrides.
// A missing file is not an error: the defaults apply unmodified.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, xerrors.WithStackTrace(fmt.Errorf("reading config %s: %w", path, err))
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, xerrors.WithStackTrace(fmt.Errorf("parsing config %s: %w", path, err))
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv("AUDIOMARK_STORE_DSN"); dsn != "" {
		cfg.Store.DSN = dsn
	}
	if kind := os.Getenv("AUDIOMARK_STORE_KIND"); kind != "" {
		cfg.Store.Kind = kind
	}
	if lvl := os.Getenv("AUDIOMARK_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if w := os.Getenv("AUDIOMARK_WORKERS"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			cfg.Workers = n
		}
	}
}
