// Package logging configures slog output and defines the logger contract used by envtools.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Logger represents basic logging behavior
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger represents logger which produce no output
type NoopLogger struct{}

func (n NoopLogger) Debug(msg string, args ...any) {}

func (n NoopLogger) Info(msg string, args ...any) {}

func (n NoopLogger) Error(msg string, args ...any) {}

// NewNoopLogger builds new NoopLogger
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// ParseLevel maps debug, info, warn and error onto slog levels, info is the default.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New builds a slog logger writing to w.
// format: text, json (default: text)
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(w io.Writer, level, format string) *slog.Logger {
	l := New(w, level, format)
	slog.SetDefault(l)
	return l
}
