package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) { // A
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewRespectsLevel(t *testing.T) { // A
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, slog.LevelWarn, true)
	l.Info("hidden")
	l.Warn("shown", "segment", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "segment=3") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestOrDiscard(t *testing.T) { // H
	t.Parallel()

	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}
	l := New(&bytes.Buffer{}, slog.LevelInfo, true)
	if OrDiscard(l) != l {
		t.Fatal("OrDiscard replaced a non-nil logger")
	}
}
