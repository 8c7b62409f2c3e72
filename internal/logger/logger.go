package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide JSON logger on stderr. LOG_LEVEL, when set,
// takes precedence over the configured level.
func Init(level string) {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = env
	}
	slog.SetDefault(New(os.Stderr, level))
}

func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to info.
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
