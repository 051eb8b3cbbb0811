package encryption

import (
	"errors"
	"fmt"
)

var errBadPadding = errors.New("invalid PKCS#7 padding")

func errBadCiphertextLength(n int) error {
	return fmt.Errorf("ciphertext length %d is not a positive multiple of %d", n, IVSize)
}
