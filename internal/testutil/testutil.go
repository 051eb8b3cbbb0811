// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"flag"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

// RunLong enables tests that work on full-size segments.
var RunLong = flag.Bool("long", false, "run long/heavy tests")

func RequireLong(t *testing.T) {
	t.Helper()
	if !*RunLong {
		t.Skip("skipping long test (use -long to enable)")
	}
}

// WriteRandomFile writes size pseudo-random bytes derived from seed to a
// fresh file under t.TempDir and returns its path and content.
func WriteRandomFile(t *testing.T, name string, size int, seed int64) (string, []byte) {
	t.Helper()
	data := make([]byte, size)
	rand.New(rand.NewSource(seed)).Read(data)

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path, data
}
