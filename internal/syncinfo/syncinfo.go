// Package syncinfo holds the version-control state records tracked for every
// file and folder of a working copy.
package syncinfo

// ResourceSync is the per-resource sync state kept in a directory's entries
// file. Identity is (parent directory, Name); Name must always equal the base
// name of the resource it describes.
type ResourceSync struct {
	Name      string `json:"name"`
	Revision  string `json:"revision,omitempty"`  // empty for directories
	Timestamp string `json:"timestamp,omitempty"` // last-sync timestamp token, opaque to the cache
	Options   string `json:"options,omitempty"`   // keyword substitution options
	Tag       string `json:"tag,omitempty"`       // sticky tag, empty means the default branch
	Directory bool   `json:"directory,omitempty"`
}

// NewDirectorySync returns the minimal record registered for a bound child
// directory. Directories carry no revision of their own.
func NewDirectorySync(name string) *ResourceSync {
	return &ResourceSync{Name: name, Directory: true}
}

func (r *ResourceSync) Equal(other *ResourceSync) bool {
	if r == nil || other == nil {
		return r == other
	}
	return *r == *other
}

// FolderSync binds a directory to a repository location. At most one exists
// per directory, and its presence is the precondition for any child of the
// directory to carry a ResourceSync record.
type FolderSync struct {
	Root       string `json:"root"`             // repository location, e.g. ":ext:user@host:/var/repo"
	Repository string `json:"repository"`       // module path within the repository
	Tag        string `json:"tag,omitempty"`    // sticky tag pinning the checkout target
	Static     bool   `json:"static,omitempty"` // folder contents are fixed; don't expect new entries
}

func (f *FolderSync) Equal(other *FolderSync) bool {
	if f == nil || other == nil {
		return f == other
	}
	return *f == *other
}
