// Package encryption implements the optional cipher stage: every segment
// is encrypted with AES-256-CBC before it reaches the erasure coder.
package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"

	"github.com/sunway910/api-sub001/pkg/model"
)

const (
	// KeySize is the AES-256 key length. Shorter caller keys are
	// zero-padded to it.
	KeySize = 32

	// IVSize is the CBC initialisation vector length.
	IVSize = aes.BlockSize
)

// Cipher encrypts and decrypts whole segments with a caller key.
type Cipher interface {
	Encrypt(key, plaintext []byte) ([]byte, error)
	Decrypt(key, ciphertext []byte) ([]byte, error)
}

// ValidateKey rejects an empty key and a key longer than KeySize.
func ValidateKey(key []byte) error { // A
	if len(key) == 0 {
		return model.Invalidf("encryption: cipher key is empty")
	}
	if len(key) > KeySize {
		return model.Invalidf(
			"encryption: cipher key is %d bytes, max %d",
			len(key),
			KeySize,
		)
	}
	return nil
}

// DeriveKeyIV zero-pads key to KeySize bytes and takes the IV from the
// first IVSize bytes of the padded key.
//
// The IV is therefore fixed per key, so equal plaintext segments encrypt
// to equal ciphertext. Storage nodes and other clients rely on this exact
// derivation; changing it breaks compatibility with already stored files.
func DeriveKeyIV(key []byte) (k, iv []byte, err error) { // PA
	if err := ValidateKey(key); err != nil {
		return nil, nil, err
	}
	k = make([]byte, KeySize)
	copy(k, key)
	iv = make([]byte, IVSize)
	copy(iv, k[:IVSize])
	return k, iv, nil
}

// CiphertextSize returns the AES-CBC/PKCS#7 output length for n
// plaintext bytes.
func CiphertextSize(n int64) int64 { // H
	return n + aes.BlockSize - n%aes.BlockSize
}

// AESCBC is AES-256 in CBC mode with PKCS#7 padding.
type AESCBC struct{}

func (AESCBC) Encrypt(key, plaintext []byte) ([]byte, error) { // PA
	k, iv, err := DeriveKeyIV(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, model.CodingError("encryption: new cipher", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func (AESCBC) Decrypt(key, ciphertext []byte) ([]byte, error) { // PA
	k, iv, err := DeriveKeyIV(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, model.CodingError(
			"encryption: decrypt",
			errBadCiphertextLength(len(ciphertext)),
		)
	}
	block, err := aes.NewCipher(k)
	if err != nil {
		return nil, model.CodingError("encryption: new cipher", err)
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	plain, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return nil, model.CodingError("encryption: decrypt", err)
	}
	return plain, nil
}

var _ Cipher = AESCBC{}

func pkcs7Pad(data []byte, blockSize int) []byte { // A
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) { // A
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, errBadCiphertextLength(len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
