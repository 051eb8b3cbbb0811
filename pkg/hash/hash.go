// Package hash provides the content digests used to address segments,
// fragments and files.
package hash

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/sunway910/api-sub001/pkg/model"
)

// Size is the length of a raw digest in bytes.
const Size = sha256.Size

// Hash is a raw SHA-256 digest.
type Hash [Size]byte

// String returns the lowercase hex encoding of h.
func (h Hash) String() string { // H
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the raw digest.
func (h Hash) Bytes() []byte { // H
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// FromHex parses a hex digest. Upper case input is accepted; String always
// produces lower case.
func FromHex(s string) (Hash, error) { // A
	var h Hash
	if len(s) != Size*2 {
		return h, model.Invalidf(
			"hash: %q is %d chars, want %d",
			s,
			len(s),
			Size*2,
		)
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, model.Invalidf("hash: decode %q: %v", s, err)
	}
	return h, nil
}

// HashBytes returns the SHA-256 digest of b.
func HashBytes(b []byte) Hash { // H
	return sha256.Sum256(b)
}

// HashHex returns the lowercase hex SHA-256 digest of b.
func HashHex(b []byte) string { // H
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}

// HashString returns the SHA-256 digest of s.
func HashString(s string) Hash { // H
	return sha256.Sum256([]byte(s))
}

// HashReader consumes r to EOF and returns the digest of everything read.
// A read error is returned as ErrIO and no digest is produced.
func HashReader(r io.Reader) (Hash, error) { // A
	var h Hash
	d := sha256.New()
	if _, err := io.Copy(d, r); err != nil {
		return h, model.IOError("hash: read stream", err)
	}
	copy(h[:], d.Sum(nil))
	return h, nil
}

// HashFile returns the digest of the file at path.
func HashFile(path string) (Hash, error) { // A
	f, err := os.Open(path)
	if err != nil {
		return Hash{}, model.IOError("hash: open file", err)
	}
	defer f.Close()

	h, err := HashReader(f)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: %s: %w", path, err)
	}
	return h, nil
}

// MD5Hex returns the lowercase hex MD5 digest of b. It is used for
// transfer checksums only, never for content addressing.
func MD5Hex(b []byte) string { // H
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Hasher computes content addresses. Stores and stages take a Hasher so
// tests can observe or replace the digest function.
type Hasher interface {
	Sum(data []byte) Hash
}

// SHA256 is the Hasher used by the storage network.
type SHA256 struct{}

func (SHA256) Sum(data []byte) Hash { // H
	return sha256.Sum256(data)
}
