// Package diskspace checks that a save directory has room for fragments
// before any of them is written.
package diskspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
	"github.com/sunway910/api-sub001/pkg/model"
)

const gib = 1024 * 1024 * 1024

// ErrInsufficientSpace is returned when the filesystem holding the target
// has less free space than required.
var ErrInsufficientSpace = errors.New("not enough space available on disk")

// usage is swapped in tests.
var usage = func(path string) (uint64, error) {
	stat, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return stat.Free, nil
}

// Free returns the free bytes of the filesystem that holds path. When path
// does not exist yet the nearest existing parent is measured, so Free never
// creates directories.
func Free(path string) (uint64, error) { // A
	existing, err := nearestExisting(path)
	if err != nil {
		return 0, model.IOError("diskspace: resolve path", err)
	}
	free, err := usage(existing)
	if err != nil {
		return 0, model.IOError("diskspace: usage "+existing, err)
	}
	return free, nil
}

// Check fails with ErrInsufficientSpace when the filesystem holding path
// has less than minFreeGB GiB plus needBytes free. minFreeGB == 0 and
// needBytes == 0 disables the check.
func Check(path string, minFreeGB uint, needBytes uint64) error { // AC
	if minFreeGB == 0 && needBytes == 0 {
		return nil
	}
	free, err := Free(path)
	if err != nil {
		return err
	}
	want := uint64(minFreeGB)*gib + needBytes
	if free < want {
		return fmt.Errorf(
			"diskspace: %s has %d bytes free, need %d: %w",
			path,
			free,
			want,
			ErrInsufficientSpace,
		)
	}
	return nil
}

func nearestExisting(path string) (string, error) { // A
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", err
		}
		p = parent
	}
}
