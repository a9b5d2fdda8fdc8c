package krypto

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// SaltLength is the enforced derivation salt length in bytes.
const SaltLength = 16

// KeyLength is the output length of every derived key in bytes.
const KeyLength = 32

// Argon2Params captures tunable parameters for Argon2id.
type Argon2Params struct {
	MemoryMB    uint32
	Time        uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultArgon2Params returns the production parameters for deriving a
// 256-bit key. Derivation with these values takes hundreds of milliseconds
// to a few seconds on commodity hardware; that cost is the offline
// brute-force defence and must not be lowered outside tests.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryMB:    64,
		Time:        3,
		Parallelism: 1,
		KeyLen:      KeyLength,
	}
}

// NormalizeSecret canonicalizes a user-supplied secret before derivation:
// surrounding whitespace is trimmed and the secret is case-folded, so a
// transcription case error on a recovery code (or a password typed with
// caps lock on) does not cause an avoidable unlock failure.
func NormalizeSecret(secret string) string {
	return strings.ToLower(strings.TrimSpace(secret))
}

// DeriveKey derives a key from a user secret using Argon2id. The secret is
// normalized with NormalizeSecret first; derivation is deterministic for
// identical (secret, salt, params) inputs.
func DeriveKey(secret string, salt []byte, p Argon2Params) ([]byte, error) {
	normalized := NormalizeSecret(secret)
	if normalized == "" {
		return nil, errors.New("secret is required")
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("salt must be %d bytes", SaltLength)
	}
	if p.MemoryMB == 0 {
		return nil, errors.New("memory parameter must be positive")
	}
	if p.Time == 0 {
		return nil, errors.New("time parameter must be positive")
	}
	if p.Parallelism == 0 {
		return nil, errors.New("parallelism parameter must be positive")
	}
	if p.KeyLen != KeyLength {
		return nil, fmt.Errorf("key length must be %d bytes", KeyLength)
	}

	secretBytes := []byte(normalized)
	defer Wipe(secretBytes)

	memoryKB := p.MemoryMB * 1024
	key := argon2.IDKey(secretBytes, salt, p.Time, memoryKB, p.Parallelism, p.KeyLen)
	return key, nil
}

// NewSalt returns a fresh random derivation salt.
func NewSalt() ([]byte, error) {
	salt, err := RandomBytes(SaltLength)
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
