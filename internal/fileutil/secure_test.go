package fileutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// assertPermNoMoreThan tolerates a umask narrowing the mode further.
func assertPermNoMoreThan(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	got := info.Mode().Perm()
	if got&^want != 0 {
		t.Errorf("perm = %04o, has bits beyond %04o (extra: %04o)", got, want, got&^want)
	}
}

func TestSecureMkdirAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := SecureMkdirAll(path, 0700); err != nil {
		t.Fatalf("SecureMkdirAll: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory")
	}
	if runtime.GOOS != "windows" {
		assertPermNoMoreThan(t, path, 0700)
	}

	// Existing directories are left alone.
	if err := SecureMkdirAll(path, 0700); err != nil {
		t.Errorf("second SecureMkdirAll: %v", err)
	}
}

func TestRestrictFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := RestrictFile(path, 0600); err != nil {
		t.Fatalf("RestrictFile: %v", err)
	}
	if runtime.GOOS != "windows" {
		assertPermNoMoreThan(t, path, 0600)
	}
}

func TestRestrictFileMissing(t *testing.T) {
	if err := RestrictFile(filepath.Join(t.TempDir(), "store.db-wal"), 0600); err != nil {
		t.Errorf("RestrictFile on a missing file = %v, want nil", err)
	}
}
