package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"audiomark/internal/audioio"
	"audiomark/internal/config"
	"audiomark/internal/engine"
	"audiomark/internal/fingerprint"
	"audiomark/internal/httpapi"
	"audiomark/internal/logging"
)

func loadConfigAndAlgo(fs *flag.FlagSet, args []string) (config.Config, fingerprint.Algorithm, []string, error) {
	configPath := fs.String("config", "audiomark.yaml", "path to config file")
	algoFlag := fs.String("algo", "maxima", "fingerprint algorithm: maxima, patch, chroma")
	storeFlag := fs.String("store", "", "index backend: sqlite, redis, mongo, memory (default: config file's store.kind)")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, "", nil, &usageError{msg: err.Error()}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, "", nil, err
	}
	if *storeFlag != "" {
		cfg.Store.Kind = *storeFlag
	}
	logging.Configure(cfg.LogLevel, true)

	var algo fingerprint.Algorithm
	switch *algoFlag {
	case "maxima":
		algo = fingerprint.AlgoMaxima
	case "patch":
		algo = fingerprint.AlgoPatch
	case "chroma":
		algo = fingerprint.AlgoChroma
	default:
		return config.Config{}, "", nil, &usageError{msg: fmt.Sprintf("unknown algorithm %q", *algoFlag)}
	}

	return cfg, algo, fs.Args(), nil
}

// audioExtensions are the extensions internal/audioio.DefaultLoader knows
// how to decode (natively or via ffmpeg); expandPaths uses them to filter
// a directory walk down to files actually worth fingerprinting.
var audioExtensions = map[string]bool{
	".wav": true, ".flac": true, ".mp3": true, ".ogg": true, ".m4a": true,
}

// expandPaths resolves each argument to a flat list of files to register:
// a plain file is passed through unfiltered (the caller asked for it by
// name), a directory is walked recursively and filtered to audioExtensions.
//
// Grounded on tefkah-seek-tune/server/cmdHandlers.go's save(), which stats
// each argument and falls back to filepath.Walk for directories.
func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		err = filepath.Walk(p, func(fp string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if audioExtensions[strings.ToLower(filepath.Ext(fp))] {
				out = append(out, fp)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return out, nil
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	cfg, algo, paths, err := loadConfigAndAlgo(fs, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return &usageError{msg: "usage: audiomark register --algo X [--store KIND] [--config FILE] PATH..."}
	}

	paths, err = expandPaths(paths)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return &usageError{msg: "no audio files found under the given path(s)"}
	}

	ctx := context.Background()
	idx, err := engine.OpenIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	extractor, err := engine.BuildExtractor(cfg, algo)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("registering"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	eng := engine.New(audioio.NewDefaultLoader(), idx, cfg.Workers)
	results := eng.RegisterAll(ctx, extractor, paths, func(engine.BulkResult) { bar.Add(1) })

	successes, failures := 0, 0
	for _, r := range results {
		if r.Err != nil {
			color.Red("error: %s: %v", r.Path, r.Err)
			failures++
			continue
		}
		if r.Result.AlreadyExisted {
			fmt.Printf("%s: already registered (reference %d)\n", r.Path, r.Result.ReferenceId)
		} else {
			color.Green("%s: registered as reference %d (%d fingerprints)", r.Path, r.Result.ReferenceId, r.Result.FingerprintCnt)
		}
		successes++
	}

	fmt.Printf("\nprocessed %d file(s): %d succeeded, %d failed\n", len(results), successes, failures)
	if failures > 0 && successes == 0 {
		return fmt.Errorf("all %d registration(s) failed", failures)
	}
	return nil
}

func runIdentify(args []string) error {
	fs := flag.NewFlagSet("identify", flag.ContinueOnError)
	startFlag := fs.String("start", "", "window start, mm:ss")
	endFlag := fs.String("end", "", "window end, mm:ss")
	cfg, algo, paths, err := loadConfigAndAlgo(fs, args)
	if err != nil {
		return err
	}
	if len(paths) != 1 {
		return &usageError{msg: "usage: audiomark identify --algo X [--start mm:ss --end mm:ss] FILE"}
	}

	var win audioio.Window
	if *startFlag != "" && *endFlag != "" {
		startSec, err := parseMMSS(*startFlag)
		if err != nil {
			return &usageError{msg: err.Error()}
		}
		endSec, err := parseMMSS(*endFlag)
		if err != nil {
			return &usageError{msg: err.Error()}
		}
		win = audioio.Window{Start: startSec, End: endSec, Set: true}
	}

	ctx := context.Background()
	idx, err := engine.OpenIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	extractor, err := engine.BuildExtractor(cfg, algo)
	if err != nil {
		return err
	}

	eng := engine.New(audioio.NewDefaultLoader(), idx, cfg.Workers)
	result, err := eng.Identify(ctx, extractor, paths[0], win, 5)
	if err != nil {
		return err
	}

	if !result.Matched {
		color.Yellow("no match found")
		return nil
	}

	secondsPerFrame := float64(cfg.HopLength) / float64(cfg.SampleRate)
	color.Green("matched reference %d: %s", result.Winner.ReferenceId, result.Reference.FilePath)
	fmt.Printf("score: %d, aligned offset: %d frames (%.2fs)\n",
		result.Winner.Score, result.Winner.AlignedOffset, float64(result.Winner.AlignedOffset)*secondsPerFrame)

	for _, runner := range result.RunnersUp {
		fmt.Printf("  runner-up: reference %d, score %d\n", runner.ReferenceId, runner.Score)
	}
	return nil
}

func runClear(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ContinueOnError)
	configPath := fs.String("config", "audiomark.yaml", "path to config file")
	storeFlag := fs.String("store", "", "index backend: sqlite, redis, mongo, memory (default: config file's store.kind)")
	if err := fs.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *storeFlag != "" {
		cfg.Store.Kind = *storeFlag
	}
	logging.Configure(cfg.LogLevel, true)

	ctx := context.Background()
	idx, err := engine.OpenIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	if err := idx.ClearAll(ctx); err != nil {
		return err
	}
	fmt.Println("index cleared")
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "audiomark.yaml", "path to config file")
	port := fs.String("p", "8080", "port to listen on")
	proto := fs.String("proto", "http", "transport protocol (only http is supported)")
	if err := fs.Parse(args); err != nil {
		return &usageError{msg: err.Error()}
	}
	if *proto != "http" {
		return &usageError{msg: fmt.Sprintf("unsupported --proto %q: only http is supported", *proto)}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.Configure(cfg.LogLevel, true)

	ctx := context.Background()
	idx, err := engine.OpenIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	eng := engine.New(audioio.NewDefaultLoader(), idx, cfg.Workers)
	server := &httpapi.Server{Engine: eng, Config: cfg}

	logging.Get().Info("starting server", slog.String("port", *port), slog.Int("workers", httpapi.WorkerCount(cfg.Workers)))
	return http.ListenAndServe(":"+*port, server.NewMux())
}
