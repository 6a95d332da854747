package sync

import "errors"

var (
	// ErrNotManaged is returned when a resource's parent folder has no
	// binding marker but one is required.
	ErrNotManaged = errors.New("resource is not under version control")

	// ErrNameMismatch is returned when a record's name does not equal the
	// base name of the resource it is being associated with. This is a
	// caller bug, never retried.
	ErrNameMismatch = errors.New("sync record name does not match resource name")

	// ErrFolderMissing is returned when folder sync is set on a directory
	// that does not exist on disk.
	ErrFolderMissing = errors.New("folder must exist to set sync info")

	// ErrPendingChanges is returned by Clear when unsaved mutations exist.
	ErrPendingChanges = errors.New("cache has unsaved sync changes")
)
