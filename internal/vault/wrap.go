package vault

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/keyfort/keyfort/krypto"
)

// VaultKeyLength is the size of the symmetric key that encrypts the
// credential collection.
const VaultKeyLength = 32

var wrapAAD = []byte("config.vaultkey")

// NewVaultKey generates a fresh random vault key. The vault key is never
// derived from user input and never persisted in the clear.
func NewVaultKey() ([]byte, error) {
	key, err := krypto.RandomBytes(VaultKeyLength)
	if err != nil {
		return nil, fmt.Errorf("generate vault key: %w", err)
	}
	return key, nil
}

// WrapKey encrypts the vault key under a derived key. Wrapping draws a
// fresh nonce every call, so rewrapping after a password change yields a
// different ciphertext even for an unchanged vault key.
func WrapKey(vaultKey, derivedKey []byte) (WrappedKey, error) {
	if len(vaultKey) != VaultKeyLength {
		return WrappedKey{}, errors.New("invalid vault key length")
	}
	if len(derivedKey) != krypto.KeyLength {
		return WrappedKey{}, errors.New("invalid derived key length")
	}

	nonce, ciphertext, err := krypto.EncryptAESGCM(derivedKey, vaultKey, wrapAAD)
	if err != nil {
		return WrappedKey{}, fmt.Errorf("wrap vault key: %w", err)
	}

	return WrappedKey{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// UnwrapKey attempts to recover the vault key from a wrapped copy using a
// candidate derived key. A wrong secret is an expected, non-exceptional
// outcome: any failure to authenticate or decode reports ok=false, never
// an error the caller has to distinguish.
func UnwrapKey(w WrappedKey, derivedKey []byte) ([]byte, bool) {
	if len(derivedKey) != krypto.KeyLength {
		return nil, false
	}

	nonce, err := base64.StdEncoding.DecodeString(w.Nonce)
	if err != nil {
		return nil, false
	}
	ciphertext, err := base64.StdEncoding.DecodeString(w.Ciphertext)
	if err != nil {
		return nil, false
	}

	vaultKey, err := krypto.DecryptAESGCM(derivedKey, nonce, ciphertext, wrapAAD)
	if err != nil {
		return nil, false
	}
	if len(vaultKey) != VaultKeyLength {
		krypto.Wipe(vaultKey)
		return nil, false
	}
	return vaultKey, true
}
