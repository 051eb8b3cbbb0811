package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Logger is the process-wide default used by the command line tools.
var Logger *slog.Logger

func init() {
	Logger = New(os.Stderr, slog.LevelInfo, false)
}

// New builds a tint-backed logger writing to w.
func New(w io.Writer, level slog.Level, noColor bool) *slog.Logger { // AC
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		AddSource:  level <= slog.LevelDebug,
		NoColor:    noColor,
	})
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger { // A
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger { // A
	if l == nil {
		return Discard()
	}
	return l
}

// ParseLevel maps debug, info, warn and error (case-insensitive) to a
// slog level. The empty string is info.
func ParseLevel(s string) (slog.Level, error) { // A
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}
