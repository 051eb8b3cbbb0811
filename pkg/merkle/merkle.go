// Package merkle derives the file identifier (fid) as the root of a binary
// SHA-256 hash tree over the ordered segment hashes.
package merkle

import (
	"fmt"

	"github.com/sunway910/api-sub001/pkg/hash"
	"github.com/sunway910/api-sub001/pkg/model"
)

// Folder reduces an ordered list of leaf hashes to a single root.
type Folder interface {
	Root(leaves []hash.Hash) (hash.Hash, error)
}

// HashFolder folds with Hasher. A nil Hasher is SHA-256, which is what
// fids use.
type HashFolder struct {
	Hasher hash.Hasher
}

func (f HashFolder) Root(leaves []hash.Hash) (hash.Hash, error) { // H
	h := f.Hasher
	if h == nil {
		h = hash.SHA256{}
	}
	return fold(h, leaves)
}

var _ Folder = HashFolder{}

// BuildSimpleMerkleRootHash returns SHA256(leaf || leaf), the root of a
// tree with a single leaf.
func BuildSimpleMerkleRootHash(leaf hash.Hash) hash.Hash { // A
	return parent(hash.SHA256{}, leaf, leaf)
}

// BuildMerkleRootHash folds leaves level by level. Adjacent hashes are
// paired left to right; an odd hash at the end of a level is paired with
// itself. Each parent is SHA256(left || right) over the raw digests.
//
// The fold is order sensitive: swapping two distinct leaves changes the
// root.
func BuildMerkleRootHash(leaves []hash.Hash) (hash.Hash, error) { // PA
	return fold(hash.SHA256{}, leaves)
}

func fold(h hash.Hasher, leaves []hash.Hash) (hash.Hash, error) { // A
	switch len(leaves) {
	case 0:
		return hash.Hash{}, model.Invalidf("merkle: no segment hashes")
	case 1:
		return parent(h, leaves[0], leaves[0]), nil
	}

	level := make([]hash.Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]hash.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, parent(h, left, right))
		}
		level = next
	}
	return level[0], nil
}

// RootHex is BuildMerkleRootHash over hex-encoded leaves, returning the
// hex root.
func RootHex(leaves []string) (string, error) { // A
	raw := make([]hash.Hash, len(leaves))
	for i, l := range leaves {
		h, err := hash.FromHex(l)
		if err != nil {
			return "", fmt.Errorf("merkle: leaf %d: %w", i, err)
		}
		raw[i] = h
	}
	root, err := BuildMerkleRootHash(raw)
	if err != nil {
		return "", err
	}
	return root.String(), nil
}

func parent(h hash.Hasher, left, right hash.Hash) hash.Hash {
	var buf [2 * hash.Size]byte
	copy(buf[:hash.Size], left[:])
	copy(buf[hash.Size:], right[:])
	return h.Sum(buf[:])
}
