package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the preparation core wraps exactly one
// of these, so callers can branch with errors.Is while the underlying cause
// remains reachable through the same chain.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrIO           = errors.New("io failure")
	ErrCoding       = errors.New("coding failure")
)

// Invalidf builds an ErrInvalidInput error with a formatted description.
func Invalidf(format string, args ...any) error { // A
	return fmt.Errorf(
		"%w: %s",
		ErrInvalidInput,
		fmt.Sprintf(format, args...),
	)
}

// IOError tags err as ErrIO. A nil err stays nil.
func IOError(op string, err error) error { // A
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrIO) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}

// CodingError tags err as ErrCoding. A nil err stays nil.
func CodingError(op string, err error) error { // A
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrCoding) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrCoding, err)
}
