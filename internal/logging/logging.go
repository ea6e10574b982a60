package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the shared structured logger. It discards output until
// Initialize is called so packages and tests can log unconditionally.
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Initialize configures Logger. format is "json" or "text"; unknown levels
// fall back to info.
func Initialize(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	Logger = slog.New(handler)
}

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
