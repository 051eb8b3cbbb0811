// Package cas provides content-addressed blob stores. A blob is always
// stored under the SHA-256 digest of its exact bytes.
package cas

import (
	"context"

	"github.com/sunway910/api-sub001/pkg/hash"
)

// Store persists blobs by content address.
//
// The chunker, cipher stage and erasure coder only talk to a Store, so the
// whole preparation pipeline can run against a directory on disk or
// entirely in memory.
//
// # Addressing
//
// Put computes the key from the bytes it is given. Callers never choose a
// key, which keeps hash(bytes) == name(bytes) for every stored artifact.
// Putting identical bytes twice is harmless and yields the same key.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data and returns its content address.
	Put(ctx context.Context, data []byte) (hash.Hash, error)

	// Get returns the blob stored under h. A missing blob is ErrIO
	// wrapping fs.ErrNotExist.
	Get(ctx context.Context, h hash.Hash) ([]byte, error)

	// Has reports whether a blob is stored under h.
	Has(ctx context.Context, h hash.Hash) (bool, error)

	// Delete removes the blob under h. Deleting a missing blob is not an
	// error.
	Delete(ctx context.Context, h hash.Hash) error

	// Path returns where h lives. For stores without a filesystem
	// location it returns the hex digest.
	Path(h hash.Hash) string
}
