package vault_test

import (
	"bytes"
	"testing"

	"github.com/keyfort/keyfort/internal/vault"
	"github.com/keyfort/keyfort/krypto"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key, err := krypto.RandomBytes(32)
	if err != nil {
		t.Fatalf("RandomBytes returned error: %v", err)
	}
	return key
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	vaultKey, err := vault.NewVaultKey()
	if err != nil {
		t.Fatalf("NewVaultKey returned error: %v", err)
	}
	derived := randomKey(t)

	wrapped, err := vault.WrapKey(vaultKey, derived)
	if err != nil {
		t.Fatalf("WrapKey returned error: %v", err)
	}

	got, ok := vault.UnwrapKey(wrapped, derived)
	if !ok {
		t.Fatal("UnwrapKey rejected the wrapping key")
	}
	if !bytes.Equal(got, vaultKey) {
		t.Fatal("unwrapped key differs from original vault key")
	}
}

func TestUnwrapWrongKeyFails(t *testing.T) {
	vaultKey, err := vault.NewVaultKey()
	if err != nil {
		t.Fatalf("NewVaultKey returned error: %v", err)
	}

	wrapped, err := vault.WrapKey(vaultKey, randomKey(t))
	if err != nil {
		t.Fatalf("WrapKey returned error: %v", err)
	}

	if _, ok := vault.UnwrapKey(wrapped, randomKey(t)); ok {
		t.Fatal("expected unwrap to fail under a different derived key")
	}
}

func TestWrapIsNonDeterministic(t *testing.T) {
	vaultKey, err := vault.NewVaultKey()
	if err != nil {
		t.Fatalf("NewVaultKey returned error: %v", err)
	}
	derived := randomKey(t)

	w1, err := vault.WrapKey(vaultKey, derived)
	if err != nil {
		t.Fatalf("WrapKey returned error: %v", err)
	}
	w2, err := vault.WrapKey(vaultKey, derived)
	if err != nil {
		t.Fatalf("WrapKey returned error: %v", err)
	}

	if w1.Nonce == w2.Nonce || w1.Ciphertext == w2.Ciphertext {
		t.Fatal("expected rewrapping identical inputs to produce fresh nonce and ciphertext")
	}
}

func TestUnwrapGarbageFails(t *testing.T) {
	derived := randomKey(t)

	if _, ok := vault.UnwrapKey(vault.WrappedKey{}, derived); ok {
		t.Fatal("expected unwrap of empty record to fail")
	}
	if _, ok := vault.UnwrapKey(vault.WrappedKey{Nonce: "!!", Ciphertext: "!!"}, derived); ok {
		t.Fatal("expected unwrap of undecodable record to fail")
	}
}
