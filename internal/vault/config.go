// Package vault defines the persisted vault records and the key-wrapping
// scheme: a random vault key encrypts the credential collection, and two
// independently wrapped copies of that key (one under the master password,
// one under the recovery code) are stored in the config.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/keyfort/keyfort/krypto"
)

const configVersion = 1

// kdfName is the only supported derivation function identifier.
const kdfName = "argon2id"

// ErrCorrupted reports a persisted record that is present but structurally
// unusable: unparseable JSON, an unsupported version, or an unknown KDF.
var ErrCorrupted = errors.New("vault record corrupted")

// WrappedKey is an authenticated-encryption ciphertext of the vault key
// together with its nonce. Salt is unused for key wrapping (the wrap key is
// already derived) and kept for format symmetry with EncryptedVault.
type WrappedKey struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Salt       string `json:"salt,omitempty"`
}

// KDFConfig describes the key-derivation parameters persisted in the config.
type KDFConfig struct {
	Name        string `json:"name"`
	MemoryMB    uint32 `json:"memoryMB"`
	Time        uint32 `json:"time"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"keyLen"`
}

// Params converts the persisted form back into derivation parameters.
func (k KDFConfig) Params() krypto.Argon2Params {
	return krypto.Argon2Params{
		MemoryMB:    k.MemoryMB,
		Time:        k.Time,
		Parallelism: k.Parallelism,
		KeyLen:      k.KeyLen,
	}
}

// Config is the persisted record describing how the vault key is wrapped.
// It is created once at setup and immutable afterwards except for rewraps
// (password change, recovery-code rotation), which never re-derive the
// vault key and therefore never touch the encrypted collection.
type Config struct {
	Version       int        `json:"version"`
	PasswordWrap  WrappedKey `json:"passwordWrap"`
	RecoveryWrap  WrappedKey `json:"recoveryWrap"`
	Salt          string     `json:"salt"`
	KDF           KDFConfig  `json:"kdf"`
	SetupComplete bool       `json:"setupComplete"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// EncryptedVault is the persisted ciphertext of the serialized credential
// collection. Salt is unused and kept for format symmetry with WrappedKey.
type EncryptedVault struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Salt       string `json:"salt,omitempty"`
}

// Entry is one stored credential. The surrounding application owns entry
// lifecycle; this package only sees the whole collection at the
// encrypt/decrypt boundary.
type Entry struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEntry builds a credential entry with a fresh unique id.
func NewEntry(site, username, password, category string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Site:      site,
		Username:  username,
		Password:  password,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
}

// Encode serializes the config for the key-value store.
func (c Config) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// DecodeConfig parses a persisted config and validates its structure.
func DecodeConfig(s string) (Config, error) {
	var c Config
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return Config{}, fmt.Errorf("%w: decode config: %v", ErrCorrupted, err)
	}
	if c.Version != configVersion {
		return Config{}, fmt.Errorf("%w: unsupported config version %d", ErrCorrupted, c.Version)
	}
	if c.KDF.Name != kdfName {
		return Config{}, fmt.Errorf("%w: unsupported kdf %q", ErrCorrupted, c.KDF.Name)
	}
	if c.Salt == "" || c.PasswordWrap.Ciphertext == "" || c.RecoveryWrap.Ciphertext == "" {
		return Config{}, fmt.Errorf("%w: config missing required fields", ErrCorrupted)
	}
	return c, nil
}

// Encode serializes the encrypted vault for the key-value store.
func (v EncryptedVault) Encode() (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode vault: %w", err)
	}
	return string(data), nil
}

// DecodeEncryptedVault parses a persisted encrypted vault record.
func DecodeEncryptedVault(s string) (EncryptedVault, error) {
	var v EncryptedVault
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return EncryptedVault{}, fmt.Errorf("%w: decode vault: %v", ErrCorrupted, err)
	}
	if v.Version != configVersion || v.Nonce == "" || v.Ciphertext == "" {
		return EncryptedVault{}, fmt.Errorf("%w: vault missing required fields", ErrCorrupted)
	}
	return v, nil
}
