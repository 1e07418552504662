package core

import (
	"fmt"
	"log/slog"
	"strings"
)

// Logger interface for simulation logging
type Logger interface {
	Printf(format string, args ...interface{})
}

// SlogLogger adapts a structured slog.Logger to the Logger interface,
// emitting one Info record per Printf call. Trailing newlines are
// stripped so each record stays a single line.
type SlogLogger struct {
	inner *slog.Logger
}

// NewSlogLogger wraps inner, falling back to slog.Default() when nil.
func NewSlogLogger(inner *slog.Logger) *SlogLogger {
	if inner == nil {
		inner = slog.Default()
	}
	return &SlogLogger{inner: inner}
}

func (sl *SlogLogger) Printf(format string, args ...interface{}) {
	sl.inner.Info(strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}
