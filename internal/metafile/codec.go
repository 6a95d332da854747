// Package metafile owns the on-disk layout of the per-directory sync
// metadata. Every bound directory carries a `.vcs` subdirectory (the binding
// marker) holding an entries file plus the folder-binding files. All
// operations are directory-at-a-time; nothing reads or writes a single entry
// in isolation.
package metafile

import (
	"time"

	"github.com/openvcs/vcsync/internal/syncinfo"
)

const (
	// MetaDir is the binding-marker subdirectory created in every directory
	// under version control.
	MetaDir = ".vcs"

	entriesFile = "entries"
	rootFile    = "root"
	repoFile    = "repository"
	tagFile     = "tag"
	staticFile  = "static"
)

// Codec reads and writes the per-directory metadata records. The sync cache
// depends on this contract only; the byte format belongs to the
// implementation.
type Codec interface {
	// ReadEntries returns all entry records of dir, or (nil, nil) when the
	// entries file is absent. A present but malformed file is an error.
	ReadEntries(dir string) ([]*syncinfo.ResourceSync, error)

	// WriteEntries serializes records to dir's entries file, creating the
	// binding marker and parents as needed.
	WriteEntries(dir string, records []*syncinfo.ResourceSync) error

	// ReadFolderSync returns dir's folder binding, or (nil, nil) when dir has
	// no binding marker.
	ReadFolderSync(dir string) (*syncinfo.FolderSync, error)

	// WriteFolderSync serializes the folder binding for dir.
	WriteFolderSync(dir string, info *syncinfo.FolderSync) error

	// HasBinding reports whether dir has a binding marker on disk.
	HasBinding(dir string) bool

	// EnsureBinding creates dir's binding marker if absent.
	EnsureBinding(dir string) error

	// MetadataFiles lists the metadata file paths currently present for dir.
	MetadataFiles(dir string) []string

	// MarkerModTime returns the modification time of dir's binding root
	// file.
	MarkerModTime(dir string) (time.Time, error)
}
