package tree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openvcs/vcsync/internal/metafile"
)

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiskFolderSkipsMetadataDir(t *testing.T) {
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, metafile.MetaDir))
	mkdirAll(t, filepath.Join(root, "src"))
	writeFile(t, filepath.Join(root, "README"))

	folder := NewDiskFolder(root, nil)

	folders, err := folder.Folders()
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || filepath.Base(folders[0].Path()) != "src" {
		t.Fatalf("expected only src, got %v", folders)
	}

	files, err := folder.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || filepath.Base(files[0].Path()) != "README" {
		t.Fatalf("expected only README, got %v", files)
	}
}

func TestDiskFolderHonorsIgnoreFile(t *testing.T) {
	root := t.TempDir()
	mkdirAll(t, filepath.Join(root, "build"))
	mkdirAll(t, filepath.Join(root, "src"))
	if err := os.WriteFile(filepath.Join(root, IgnoreFileName), []byte("build/\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ignore := NewIgnoreList(root)
	ignore.Load()
	folder := NewDiskFolder(root, ignore)

	folders, err := folder.Folders()
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || filepath.Base(folders[0].Path()) != "src" {
		t.Fatalf("expected build to be ignored, got %v", folders)
	}
}

func TestDiskFolderMissingDirYieldsNoChildren(t *testing.T) {
	folder := NewDiskFolder(filepath.Join(t.TempDir(), "gone"), nil)
	folders, err := folder.Folders()
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 0 {
		t.Fatalf("expected no folders, got %v", folders)
	}
}
