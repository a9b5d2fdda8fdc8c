package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// NonceSize is the AES-GCM nonce length in bytes (96 bits).
const NonceSize = 12

// ErrDecryptFailed reports an authentication-tag mismatch or malformed
// ciphertext. Callers must treat it as "wrong key": no partial plaintext
// is ever returned alongside it.
var ErrDecryptFailed = errors.New("decryption failed")

// EncryptAESGCM encrypts plaintext using AES-256-GCM with a freshly random
// 96-bit nonce, returning the nonce and ciphertext. A nonce is never reused
// with the same key because every call draws a new one.
func EncryptAESGCM(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, errors.New("aes-gcm requires a 32-byte key")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("create gcm: %w", err)
	}

	nonce, err = RandomBytes(NonceSize)
	if err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// DecryptAESGCM decrypts ciphertext using AES-256-GCM. Tag verification is
// mandatory; any mismatch or malformed input fails closed with
// ErrDecryptFailed.
func DecryptAESGCM(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, errors.New("aes-gcm requires a 32-byte key")
	}
	if len(nonce) != NonceSize {
		return nil, ErrDecryptFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
