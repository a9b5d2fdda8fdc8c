package store_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/keyfort/keyfort/store"
)

func TestFileStoreRoundTrip(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := fs.Get(ctx, "config"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := fs.Set(ctx, "config", `{"version":1}`); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	value, ok, err := fs.Get(ctx, "config")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !ok || value != `{"version":1}` {
		t.Fatalf("unexpected value: ok=%v value=%q", ok, value)
	}

	if err := fs.Set(ctx, "config", `{"version":2}`); err != nil {
		t.Fatalf("overwrite returned error: %v", err)
	}
	value, _, err = fs.Get(ctx, "config")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if value != `{"version":2}` {
		t.Fatalf("expected overwritten value, got %q", value)
	}

	if err := fs.Delete(ctx, "config"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok, _ := fs.Get(ctx, "config"); ok {
		t.Fatal("expected key to be gone after delete")
	}

	if err := fs.Delete(ctx, "config"); err != nil {
		t.Fatalf("deleting a missing key should not error: %v", err)
	}
}

func TestFileStoreRestrictivePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on windows")
	}

	dir := t.TempDir()
	fs, err := store.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	if err := fs.Set(context.Background(), "vault", "ciphertext"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "vault.json"))
	if err != nil {
		t.Fatalf("stat stored file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
}

func TestFileStoreRejectsPathKeys(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	for _, key := range []string{"", "../escape", "a/b", `a\b`} {
		if err := fs.Set(context.Background(), key, "v"); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
}

func TestFileStoreHonorsContext(t *testing.T) {
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := fs.Set(ctx, "config", "v"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, _, err := fs.Get(ctx, "config"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
