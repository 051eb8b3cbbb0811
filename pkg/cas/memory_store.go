package cas

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
)

// MemoryStore keeps blobs in a map. It is meant for tests and for callers
// that upload fragments straight from memory.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[hash.Hash][]byte
	hasher hash.Hasher
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(hasher hash.Hasher) *MemoryStore { // A
	if hasher == nil {
		hasher = hash.SHA256{}
	}
	return &MemoryStore{
		blobs:  make(map[hash.Hash][]byte),
		hasher: hasher,
	}
}

func (s *MemoryStore) Put(
	ctx context.Context,
	data []byte,
) (hash.Hash, error) { // A
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}
	h := s.hasher.Sum(data)
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[h] = buf
	return h, nil
}

func (s *MemoryStore) Get(
	ctx context.Context,
	h hash.Hash,
) ([]byte, error) { // A
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[h]
	if !ok {
		return nil, model.IOError(
			fmt.Sprintf("cas: get %s", h),
			fs.ErrNotExist,
		)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Has(
	ctx context.Context,
	h hash.Hash,
) (bool, error) { // A
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[h]
	return ok, nil
}

func (s *MemoryStore) Delete(
	ctx context.Context,
	h hash.Hash,
) error { // A
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, h)
	return nil
}

func (s *MemoryStore) Path(h hash.Hash) string { // H
	return h.String()
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int { // H
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Keys returns the stored addresses in no particular order.
func (s *MemoryStore) Keys() []hash.Hash { // H
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]hash.Hash, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys
}

var _ Store = (*MemoryStore)(nil)
