package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/keyfort/keyfort/krypto"
)

var entriesAAD = []byte("vault.entries")

// EncryptEntries serializes and encrypts the whole credential collection
// under the vault key. The empty collection is valid and encrypts to a
// real ciphertext, distinct from a missing vault record.
func EncryptEntries(entries []Entry, vaultKey []byte) (EncryptedVault, error) {
	if len(vaultKey) != VaultKeyLength {
		return EncryptedVault{}, errors.New("invalid vault key length")
	}
	if entries == nil {
		entries = []Entry{}
	}

	plaintext, err := json.Marshal(entries)
	if err != nil {
		return EncryptedVault{}, fmt.Errorf("encode entries: %w", err)
	}
	defer krypto.Wipe(plaintext)

	nonce, ciphertext, err := krypto.EncryptAESGCM(vaultKey, plaintext, entriesAAD)
	if err != nil {
		return EncryptedVault{}, fmt.Errorf("encrypt entries: %w", err)
	}

	return EncryptedVault{
		Version:    configVersion,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// DecryptEntries decrypts the credential collection with the vault key.
// A tag mismatch surfaces as krypto.ErrDecryptFailed; callers route it to
// lockout/corruption handling, never to an implicit empty collection.
func DecryptEntries(ev EncryptedVault, vaultKey []byte) ([]Entry, error) {
	if len(vaultKey) != VaultKeyLength {
		return nil, errors.New("invalid vault key length")
	}

	nonce, err := base64.StdEncoding.DecodeString(ev.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: decode nonce: %v", ErrCorrupted, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(ev.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decode ciphertext: %v", ErrCorrupted, err)
	}

	plaintext, err := krypto.DecryptAESGCM(vaultKey, nonce, ciphertext, entriesAAD)
	if err != nil {
		return nil, err
	}
	defer krypto.Wipe(plaintext)

	var entries []Entry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode entries: %v", ErrCorrupted, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
