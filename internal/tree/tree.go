// Package tree models the logical resource tree that reload walks. The sync
// cache never enumerates the filesystem itself; it consumes Folder and File
// nodes supplied by a walker.
package tree

// Resource is any node of the working-copy tree.
type Resource interface {
	// Path returns the node's absolute on-disk path.
	Path() string
}

// Folder yields its direct children. Enumeration errors surface to the
// caller; a folder with no children returns empty slices.
type Folder interface {
	Resource
	Folders() ([]Folder, error)
	Files() ([]File, error)
}

// File is a leaf node.
type File interface {
	Resource
}
