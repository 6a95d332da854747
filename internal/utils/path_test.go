package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePathEmpty(t *testing.T) {
	if _, err := ResolvePath(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestResolvePathHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ResolvePath("~/wc")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "wc") {
		t.Fatalf("expected home expansion, got %s", got)
	}
}

func TestEnsureDirIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if !DirExists(dir) {
		t.Fatal("expected directory to exist")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	if FileExists(dir) {
		t.Fatal("directories are not files")
	}
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !FileExists(path) {
		t.Fatal("expected file to exist")
	}
}
