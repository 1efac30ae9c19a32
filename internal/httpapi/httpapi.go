// Package httpapi exposes the engine over HTTP: register, identify, stats,
// and references endpoints, grounded on tefkah-seek-tune/server/handlers.go
// and cmdHandlers.go's serve/requestLogger/corsMiddleware idiom.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"audiomark/internal/audioio"
	"audiomark/internal/config"
	"audiomark/internal/engine"
	"audiomark/internal/fingerprint"
	"audiomark/internal/index"
	"audiomark/internal/logging"
)

const maxUploadSize = 1 << 30 // 1 GB

// Server wires an Engine to the HTTP handlers below.
type Server struct {
	Engine *engine.Engine
	Config config.Config
}

// NewMux builds the routed handler: requestLogger(corsMiddleware(mux)).
func (s *Server) NewMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/identify", s.handleIdentify)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/references", s.handleReferences)
	return requestLogger(corsMiddleware(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(rec, r)
		logging.Get().Info("http request",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rec.status), slog.Duration("elapsed", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	logging.Get().Error("http error", slog.Int("status", status), slog.String("message", msg))
	writeJSON(w, status, []byte(fmt.Sprintf(`{"error":%q}`, msg)))
}

// algorithmFromRequest reads ?algo=maxima|patch|chroma, defaulting to maxima.
func algorithmFromRequest(r *http.Request) fingerprint.Algorithm {
	switch r.URL.Query().Get("algo") {
	case "patch":
		return fingerprint.AlgoPatch
	case "chroma":
		return fingerprint.AlgoChroma
	default:
		return fingerprint.AlgoMaxima
	}
}

func saveUploadedFile(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("no file provided: %w", err)
	}
	defer file.Close()

	tmpDir := os.TempDir()
	tmpPath := filepath.Join(tmpDir, fmt.Sprintf("audiomark_upload_%d_%s", time.Now().UnixNano(), filepath.Base(header.Filename)))
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(file); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	return tmpPath, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	tmpPath, err := saveUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmpPath)

	algo := algorithmFromRequest(r)
	cfg := s.Config
	if algo == fingerprint.AlgoPatch {
		if v, ok := minPatchEnergyOverride([]byte(r.FormValue("params"))); ok {
			cfg.Patch.MinPatchEnergy = v
		}
	}
	extractor, err := engine.BuildExtractor(cfg, algo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.Engine.Register(r.Context(), extractor, tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body := fmt.Sprintf(`{"referenceId":%d,"fingerprints":%d,"alreadyRegistered":%t}`,
		result.ReferenceId, result.FingerprintCnt, result.AlreadyExisted)
	writeJSON(w, http.StatusOK, []byte(body))
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	tmpPath, err := saveUploadedFile(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(tmpPath)

	algo := algorithmFromRequest(r)
	extractor, err := engine.BuildExtractor(s.Config, algo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.Engine.Identify(r.Context(), extractor, tmpPath, windowFromRequest(r), 5)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !result.Matched {
		writeJSON(w, http.StatusOK, []byte(`{"matched":false}`))
		return
	}

	body := fmt.Sprintf(`{"matched":true,"referenceId":%d,"filePath":%q,"score":%d,"alignedOffsetFrames":%d}`,
		result.Winner.ReferenceId, result.Reference.FilePath, result.Winner.Score, result.Winner.AlignedOffset)
	writeJSON(w, http.StatusOK, []byte(body))
}

// windowFromRequest reads optional ?start=<seconds>&end=<seconds> query
// parameters into an audioio.Window. Either both or neither must be given;
// a lone start or end is ignored, matching the CLI's all-or-nothing
// --start/--end pairing.
func windowFromRequest(r *http.Request) audioio.Window {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	start, errA := strconv.ParseFloat(startStr, 64)
	end, errB := strconv.ParseFloat(endStr, 64)
	if errA != nil || errB != nil {
		return audioio.Window{}
	}
	return audioio.Window{Start: start, End: end, Set: true}
}

// minPatchEnergyOverride reads an optional "minPatchEnergy" field from the
// "params" form value on /api/register, letting a caller tune the
// Spectral-Patch threshold per-request without editing the server's YAML
// config. Parsed with jsonparser rather than encoding/json for a single
// scalar field, matching the lightweight per-field JSON reads elsewhere in
// this stack's API layer.
func minPatchEnergyOverride(body []byte) (float64, bool) {
	v, err := jsonparser.GetFloat(body, "minPatchEnergy")
	if err != nil {
		return 0, false
	}
	return v, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type statsProvider interface {
		Stats(ctx context.Context) (int, int, error)
	}

	provider, ok := s.Engine.Index.(statsProvider)
	if !ok {
		writeJSON(w, http.StatusOK, []byte(`{"supported":false}`))
		return
	}

	refs, fps, err := provider.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, []byte(fmt.Sprintf(`{"supported":true,"references":%d,"fingerprints":%d}`, refs, fps)))
}

func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type referenceLister interface {
		ListReferences(ctx context.Context) ([]index.Reference, error)
	}

	lister, ok := s.Engine.Index.(referenceLister)
	if !ok {
		writeJSON(w, http.StatusOK, []byte(`[]`))
		return
	}

	refs, err := lister.ListReferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, ref := range refs {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{"referenceId":%d,"filePath":%q,"filename":%q}`, ref.Id, ref.FilePath, ref.Filename)
	}
	sb.WriteByte(']')
	writeJSON(w, http.StatusOK, []byte(sb.String()))
}

// WorkerCount mirrors the engine's min(NumCPU, configured) worker pool
// sizing, exported so the CLI's serve command can log the effective count
// at startup.
func WorkerCount(configured int) int {
	n := runtime.NumCPU()
	if configured > 0 && configured < n {
		return configured
	}
	return n
}
