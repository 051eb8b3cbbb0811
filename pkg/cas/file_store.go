package cas

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sunway910/api-sub001/internal/atomicfile"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
)

// DirMode is used when FileStore creates its directory.
const DirMode os.FileMode = 0o755

// FileStore keeps blobs as files in one flat directory. File names are the
// lowercase hex digest with no extension.
type FileStore struct {
	dir    string
	hasher hash.Hasher
}

// NewFileStore returns a store rooted at dir. The directory is not touched
// until Init or the first Put.
func NewFileStore(dir string, hasher hash.Hasher) *FileStore { // A
	if hasher == nil {
		hasher = hash.SHA256{}
	}
	return &FileStore{dir: dir, hasher: hasher}
}

// Init creates the store directory including missing parents.
func (s *FileStore) Init() error { // A
	if err := os.MkdirAll(s.dir, DirMode); err != nil {
		return model.IOError("cas: create store dir", err)
	}
	return nil
}

// Put writes data atomically under its digest.
func (s *FileStore) Put(
	ctx context.Context,
	data []byte,
) (hash.Hash, error) { // AC
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	h := s.hasher.Sum(data)
	if err := s.Init(); err != nil {
		return hash.Hash{}, err
	}
	if err := atomicfile.WriteFile(s.Path(h), data); err != nil {
		return hash.Hash{}, fmt.Errorf("cas: put %s: %w", h, err)
	}
	return h, nil
}

// Get reads the blob stored under h.
func (s *FileStore) Get(
	ctx context.Context,
	h hash.Hash,
) ([]byte, error) { // A
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(h))
	if err != nil {
		return nil, model.IOError(fmt.Sprintf("cas: get %s", h), err)
	}
	return data, nil
}

// Has reports whether a file named h exists.
func (s *FileStore) Has(
	ctx context.Context,
	h hash.Hash,
) (bool, error) { // A
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(h))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, model.IOError(fmt.Sprintf("cas: stat %s", h), err)
	}
}

// Delete removes the file named h.
func (s *FileStore) Delete(
	ctx context.Context,
	h hash.Hash,
) error { // A
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(s.Path(h))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return model.IOError(fmt.Sprintf("cas: delete %s", h), err)
	}
	return nil
}

// Path returns dir/<hex digest>.
func (s *FileStore) Path(h hash.Hash) string { // H
	return filepath.Join(s.dir, h.String())
}

var _ Store = (*FileStore)(nil)
