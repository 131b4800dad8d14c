// Package logging builds the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog.Logger tagged with the component name. Level
// comes from APPBOARD_LOG_LEVEL (debug, info, warn, error); unset or
// unknown values log at info.
func New(component string) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: Level()})
	return slog.New(h).With("component", component)
}

// Level parses APPBOARD_LOG_LEVEL.
func Level() slog.Level {
	switch strings.ToLower(os.Getenv("APPBOARD_LOG_LEVEL")) {
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
