package tree

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskFolder is the standard walker: children come straight from the
// filesystem, filtered through an ignore list.
type DiskFolder struct {
	path   string
	ignore *IgnoreList
}

// NewDiskFolder roots a disk-backed tree at path. ignore may be nil, in
// which case only a default-compiled list for path applies.
func NewDiskFolder(path string, ignore *IgnoreList) *DiskFolder {
	if ignore == nil {
		ignore = NewIgnoreList(path)
	}
	return &DiskFolder{path: path, ignore: ignore}
}

func (f *DiskFolder) Path() string {
	return f.path
}

func (f *DiskFolder) Folders() ([]Folder, error) {
	dirents, err := f.readDir()
	if err != nil {
		return nil, err
	}
	var folders []Folder
	for _, d := range dirents {
		if d.IsDir() {
			folders = append(folders, &DiskFolder{
				path:   filepath.Join(f.path, d.Name()),
				ignore: f.ignore,
			})
		}
	}
	return folders, nil
}

func (f *DiskFolder) Files() ([]File, error) {
	dirents, err := f.readDir()
	if err != nil {
		return nil, err
	}
	var files []File
	for _, d := range dirents {
		if !d.IsDir() {
			files = append(files, &DiskFile{path: filepath.Join(f.path, d.Name())})
		}
	}
	return files, nil
}

func (f *DiskFolder) readDir() ([]os.DirEntry, error) {
	dirents, err := os.ReadDir(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			// A folder deleted mid-walk has no children.
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", f.path, err)
	}

	kept := dirents[:0]
	for _, d := range dirents {
		if f.ignore.ShouldIgnore(filepath.Join(f.path, d.Name()), d.IsDir()) {
			continue
		}
		kept = append(kept, d)
	}
	return kept, nil
}

// DiskFile is a filesystem leaf.
type DiskFile struct {
	path string
}

func NewDiskFile(path string) *DiskFile {
	return &DiskFile{path: path}
}

func (f *DiskFile) Path() string {
	return f.path
}
