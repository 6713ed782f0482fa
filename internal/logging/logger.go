package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/wire"
	"github.com/trebuchet-org/lend-deploy/internal/domain/config"
)

var LoggingSet = wire.NewSet(
	NewLogger,
)

// NewLogger creates a new logger based on runtime configuration.
// LEND_LOG_LEVEL overrides the level; --debug lowers it to debug.
func NewLogger(cfg *config.RuntimeConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Debug {
		level = slog.LevelDebug
	}

	if val := strings.ToLower(os.Getenv("LEND_LOG_LEVEL")); val != "" {
		level = ParseLevel(val, level)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove time for cleaner output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ParseLevel maps a level name to a slog level, returning fallback for unknown values
func ParseLevel(val string, fallback slog.Level) slog.Level {
	switch strings.ToLower(val) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
