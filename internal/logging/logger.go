package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Format selects the log encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger writing to stderr with correlation IDs injected.
// Stdout is left to command output and the MCP stdio transport.
func New(format Format, level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, format, level, !isatty.IsTerminal(os.Stderr.Fd()))
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, format Format, level slog.Level, noColor bool) *slog.Logger {
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		h = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
			NoColor:    noColor,
		})
	}
	return slog.New(NewCorrelationHandler(h))
}
