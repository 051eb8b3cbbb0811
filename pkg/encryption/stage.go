package encryption

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/sunway910/api-sub001/pkg/cas"
	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/logging"
)

// Stage runs a Cipher over stored segments.
type Stage struct {
	Cipher Cipher
	Logger *slog.Logger
}

// NewStage returns a Stage. A nil cipher selects AESCBC.
func NewStage(c Cipher, logger *slog.Logger) *Stage { // A
	if c == nil {
		c = AESCBC{}
	}
	return &Stage{Cipher: c, Logger: logging.OrDiscard(logger)}
}

// EncryptSegments replaces each plaintext segment in store by its
// ciphertext and returns the ciphertext addresses in the input order.
// The key is validated before any segment is read. A segment listed more
// than once is removed after its last occurrence.
func (s *Stage) EncryptSegments(
	ctx context.Context,
	store cas.Store,
	segments []hash.Hash,
	key []byte,
) ([]hash.Hash, error) { // AC
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	last := make(map[hash.Hash]int, len(segments))
	for i, h := range segments {
		last[h] = i
	}

	out := make([]hash.Hash, len(segments))
	for i, h := range segments {
		nh, err := s.encryptOne(ctx, store, h, key, last[h] == i)
		if err != nil {
			return nil, fmt.Errorf("encryption: segment %d: %w", i, err)
		}
		out[i] = nh

		s.Logger.Debug("segment encrypted",
			"index", i,
			"plain", h.String(),
			"sealed", nh.String(),
		)
	}
	return out, nil
}

func (s *Stage) encryptOne(
	ctx context.Context,
	store cas.Store,
	h hash.Hash,
	key []byte,
	dropPlain bool,
) (hash.Hash, error) { // A
	if err := ctx.Err(); err != nil {
		return hash.Hash{}, err
	}

	plain, err := store.Get(ctx, h)
	if err != nil {
		return hash.Hash{}, err
	}
	sealed, err := s.Cipher.Encrypt(key, plain)
	if err != nil {
		return hash.Hash{}, err
	}
	nh, err := store.Put(ctx, sealed)
	if err != nil {
		return hash.Hash{}, err
	}
	if dropPlain && nh != h {
		if err := store.Delete(ctx, h); err != nil {
			return hash.Hash{}, err
		}
	}
	return nh, nil
}

// DecryptSegment reads the ciphertext segment h from store and returns
// the plaintext.
func (s *Stage) DecryptSegment(
	ctx context.Context,
	store cas.Store,
	h hash.Hash,
	key []byte,
) ([]byte, error) { // A
	sealed, err := store.Get(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}
	return s.Cipher.Decrypt(key, sealed)
}

// EncryptSegmentFiles is the path-based form: each path must be a segment
// file named by its hex digest. The returned paths point at the ciphertext
// files, in the input order.
func (s *Stage) EncryptSegmentFiles(
	ctx context.Context,
	paths []string,
	key []byte,
) ([]string, error) { // A
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	last := make(map[string]int, len(paths))
	for i, p := range paths {
		last[filepath.Clean(p)] = i
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		h, err := hash.FromHex(filepath.Base(p))
		if err != nil {
			return nil, fmt.Errorf("encryption: segment path %s: %w", p, err)
		}
		store := cas.NewFileStore(filepath.Dir(p), nil)
		nh, err := s.encryptOne(ctx, store, h, key, last[filepath.Clean(p)] == i)
		if err != nil {
			return nil, fmt.Errorf("encryption: segment path %s: %w", p, err)
		}
		out[i] = store.Path(nh)
	}
	return out, nil
}
