package krypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// RandomBytes returns n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("byte count must be positive")
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// Wipe overwrites a byte slice in place. Best effort: it limits the
// lifetime of secrets in the authoritative slice, it cannot reach copies
// the runtime may already have made.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
