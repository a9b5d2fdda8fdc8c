package krypto_test

import (
	"bytes"
	"testing"

	"github.com/keyfort/keyfort/krypto"
)

func fastParams() krypto.Argon2Params {
	return krypto.Argon2Params{MemoryMB: 8, Time: 1, Parallelism: 1, KeyLen: 32}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, err := krypto.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt returned error: %v", err)
	}

	k1, err := krypto.DeriveKey("hunter2-swordfish", salt, fastParams())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}
	k2, err := krypto.DeriveKey("hunter2-swordfish", salt, fastParams())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Fatal("expected identical keys for identical inputs")
	}
	if len(k1) != krypto.KeyLength {
		t.Fatalf("expected %d-byte key, got %d", krypto.KeyLength, len(k1))
	}
}

func TestDeriveKeyDistinctSecrets(t *testing.T) {
	salt, err := krypto.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt returned error: %v", err)
	}

	k1, err := krypto.DeriveKey("secret-one", salt, fastParams())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}
	k2, err := krypto.DeriveKey("secret-two", salt, fastParams())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}

	if bytes.Equal(k1, k2) {
		t.Fatal("expected distinct keys for distinct secrets")
	}
}

func TestDeriveKeyNormalizesInput(t *testing.T) {
	salt, err := krypto.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt returned error: %v", err)
	}

	base, err := krypto.DeriveKey("ABCD-1234", salt, fastParams())
	if err != nil {
		t.Fatalf("DeriveKey returned error: %v", err)
	}

	for _, variant := range []string{"abcd-1234", "  ABCD-1234  ", "\tAbCd-1234\n"} {
		got, err := krypto.DeriveKey(variant, salt, fastParams())
		if err != nil {
			t.Fatalf("DeriveKey(%q) returned error: %v", variant, err)
		}
		if !bytes.Equal(base, got) {
			t.Fatalf("expected %q to derive the same key after normalization", variant)
		}
	}
}

func TestDeriveKeyRejectsBadInput(t *testing.T) {
	salt, err := krypto.NewSalt()
	if err != nil {
		t.Fatalf("NewSalt returned error: %v", err)
	}

	if _, err := krypto.DeriveKey("", salt, fastParams()); err == nil {
		t.Fatal("expected error for empty secret")
	}
	if _, err := krypto.DeriveKey("   ", salt, fastParams()); err == nil {
		t.Fatal("expected error for whitespace-only secret")
	}
	if _, err := krypto.DeriveKey("secret", salt[:8], fastParams()); err == nil {
		t.Fatal("expected error for short salt")
	}

	p := fastParams()
	p.Time = 0
	if _, err := krypto.DeriveKey("secret", salt, p); err == nil {
		t.Fatal("expected error for zero time cost")
	}
}

func TestNormalizeSecret(t *testing.T) {
	cases := map[string]string{
		"  Secret  ":  "secret",
		"ALL-CAPS":    "all-caps",
		"\tmixed Up ": "mixed up",
	}
	for in, want := range cases {
		if got := krypto.NormalizeSecret(in); got != want {
			t.Fatalf("NormalizeSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
