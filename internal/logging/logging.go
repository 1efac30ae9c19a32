// Package logging configures the structured logger shared by the engine,
// CLI, and HTTP API.
package logging

import (
	"log/slog"
	"os"
	"sync"

	"github.com/mdobak/go-xerrors"
)

var (
	mu  sync.Mutex
	log *slog.Logger
)

// Configure installs the process-wide logger. level is one of
// "debug", "info", "warn", "error"; unrecognized values fall back to info.
// When pretty is true, output is plain key=value text (development); otherwise JSON
// (production/ingestion by log collectors).
func Configure(level string, pretty bool) {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: replaceAttr}

	var handler slog.Handler
	if pretty {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	log = slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replaceAttr expands any slog.Any("error", err) attribute into a group
// carrying the error's message and, when err was built with xerrors.New or
// xerrors.WithStackTrace, its call stack. Errors logged without a stack
// trace pass through with just a message.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if err, ok := a.Value.Any().(error); ok {
		a.Value = formatError(err)
	}
	return a
}

func formatError(err error) slog.Value {
	attrs := []slog.Attr{slog.String("msg", err.Error())}

	frames := xerrors.StackTrace(err)
	if len(frames) > 0 {
		attrs = append(attrs, slog.Any("trace", frames))
	}

	return slog.GroupValue(attrs...)
}

// Get returns the shared logger, configuring a sane default if Configure
// was never called (tests, library callers embedding the engine directly).
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return log
}
