// Package logger constructs the structured slog.Logger shared across the
// pipeline's components.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON-structured logger reading its level from LOG_LEVEL
// (spec §6 Environment Inputs). Unrecognized or unset values default to info.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
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
