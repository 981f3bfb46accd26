package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a text slog.Logger for the given level string and service name.
// The service attribute is attached to every line so the three Lambda
// entrypoints can be told apart in aggregated logs.
func New(level, service string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler).With("service", service)
}

// WithCorrelation returns a child logger carrying the correlation id used for
// tracing a single document across pipeline, API and worker invocations.
func WithCorrelation(logger *slog.Logger, correlationID string) *slog.Logger {
	return logger.With("correlation_id", correlationID)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
