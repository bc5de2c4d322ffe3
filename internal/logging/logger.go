package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the application logger.
//
// Environment overrides (see FromEnv):
//   - CADENCE_LOG_LEVEL=debug|info|warn|error
//   - CADENCE_LOG_FORMAT=text|json
//   - CADENCE_LOG_FILE=<path> (rotated JSON copy of every record)
//   - CADENCE_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string
	AddSource bool
	File      string

	// Output overrides Stderr. Used by tests.
	Output io.Writer
}

// New creates a configured application logger.
// Console output goes to Stderr so it never mixes with Stdout flows
// (dialogue text, JSON-RPC). The "error" key is normalized to "err".
func New(opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		AddSource:   opts.AddSource,
		ReplaceAttr: normalizeKeys,
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, hopts)
	} else {
		console = slog.NewTextHandler(out, hopts)
	}

	if strings.TrimSpace(opts.File) == "" {
		return slog.New(console)
	}

	w := &lj.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	return slog.New(&fanout{hs: []slog.Handler{console, slog.NewJSONHandler(w, hopts)}})
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// FromEnv builds Options from CADENCE_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("CADENCE_LOG_LEVEL", "info"),
		Format:    getenv("CADENCE_LOG_FORMAT", "text"),
		AddSource: strings.EqualFold(os.Getenv("CADENCE_LOG_SOURCE"), "true"),
		File:      os.Getenv("CADENCE_LOG_FILE"),
	}
}

// ParseLevel converts a level name to slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func normalizeKeys(_ []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// fanout sends each record to every handler that accepts its level.
type fanout struct{ hs []slog.Handler }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		out[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: out}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		out[i] = h.WithGroup(name)
	}
	return &fanout{hs: out}
}
