package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/keyfort/keyfort/store"
)

func openTestSQLite(t *testing.T) *store.SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "keyfort.db")
	st, err := store.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite returned error: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected database file at %q: %v", path, err)
	}
	return st
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "lockout"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := st.Set(ctx, "lockout", `{"failedAttempts":1}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, ok, err := st.Get(ctx, "lockout")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok || value != `{"failedAttempts":1}` {
		t.Fatalf("unexpected value: ok=%v value=%q", ok, value)
	}

	if err := st.Set(ctx, "lockout", `{"failedAttempts":2}`); err != nil {
		t.Fatalf("upsert returned error: %v", err)
	}
	value, _, err = st.Get(ctx, "lockout")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if value != `{"failedAttempts":2}` {
		t.Fatalf("expected upserted value, got %q", value)
	}

	if err := st.Delete(ctx, "lockout"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "lockout"); ok {
		t.Fatal("expected key to be gone after delete")
	}
}

func TestSQLiteStoreKeysAreIndependent(t *testing.T) {
	st := openTestSQLite(t)
	ctx := context.Background()

	if err := st.Set(ctx, "config", "a"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := st.Set(ctx, "vault", "b"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	if err := st.Delete(ctx, "config"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	value, ok, err := st.Get(ctx, "vault")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok || value != "b" {
		t.Fatal("deleting one key must not affect another")
	}
}
