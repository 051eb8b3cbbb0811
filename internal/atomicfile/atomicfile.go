// Package atomicfile writes files so that the destination path either does
// not exist or holds the complete content.
package atomicfile

import (
	"fmt"
	"io"
	"os"

	"github.com/google/renameio"
	"github.com/sunway910/api-sub001/pkg/model"
)

// FileMode is applied to every file before it is renamed into place.
const FileMode os.FileMode = 0o644

// writeData is swapped in tests to simulate a failing disk.
var writeData = func(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

// WriteFile stores data at path. The bytes are first written to a randomly
// named file in the system temp directory (or next to path when the temp
// directory is on another filesystem, where a rename would not be atomic)
// and then renamed over path.
//
// On failure the temporary file is removed. A failing removal is ignored so
// the original error is the one returned.
func WriteFile(path string, data []byte) error { // AC
	return WriteFunc(path, func(w io.Writer) error {
		return model.IOError("write temp file", writeData(w, data))
	})
}

// WriteFunc is WriteFile for content produced by fill. path is only
// replaced when fill returns nil; an error from fill is returned as is.
func WriteFunc(path string, fill func(w io.Writer) error) error { // A
	t, err := renameio.TempFile("", path)
	if err != nil {
		return model.IOError("atomicfile: create temp file", err)
	}
	// Cleanup is a no-op once CloseAtomicallyReplace succeeded.
	defer func() { _ = t.Cleanup() }()

	if err := t.Chmod(FileMode); err != nil {
		return model.IOError("atomicfile: chmod temp file", err)
	}
	if err := fill(t); err != nil {
		return fmt.Errorf("atomicfile: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return model.IOError("atomicfile: rename into place", err)
	}
	return nil
}
