// Package sync implements the working-copy synchronization-metadata cache:
// an in-memory view of every directory's sync records, backed by the
// per-directory metadata files and flushed to disk only on Save.
//
// Set and delete operations never touch disk. Clients mutate the cache and
// call Save to persist, which also notifies listeners of the affected paths.
// Reads are lazy at whole-directory granularity; a single entry is never read
// in isolation.
package sync

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openvcs/vcsync/internal/metafile"
	"github.com/openvcs/vcsync/internal/syncinfo"
	"github.com/openvcs/vcsync/internal/utils"
)

// Notifier receives change notifications from the cache. Implementations
// must not call back into the Synchronizer: every notification is issued
// while the cache lock is held.
type Notifier interface {
	// Refresh asks listeners to re-read paths from disk. Best effort.
	Refresh(paths []string, deep bool)
	// BroadcastStateChanged signals that the sync state of paths changed.
	BroadcastStateChanged(paths []string)
}

type nopNotifier struct{}

func (nopNotifier) Refresh([]string, bool)         {}
func (nopNotifier) BroadcastStateChanged([]string) {}

// entrySlot caches one directory's entries file: record per child name, plus
// the binding marker's modtime at read time.
type entrySlot struct {
	timestamp time.Time
	records   map[string]*syncinfo.ResourceSync
}

func newEntrySlot() *entrySlot {
	return &entrySlot{records: make(map[string]*syncinfo.ResourceSync)}
}

// folderSlot caches one directory's folder binding.
type folderSlot struct {
	timestamp time.Time
	info      *syncinfo.FolderSync
}

// Synchronizer is the cache. A single long-lived instance is shared by all
// callers of a working copy; every operation takes one exclusive lock
// covering both maps and both pending sets.
type Synchronizer struct {
	mu       sync.Mutex
	codec    metafile.Codec
	notifier Notifier

	// keyed by clean absolute directory path
	entries map[string]*entrySlot
	folders map[string]*folderSlot

	// directories with in-memory mutations not yet flushed by Save
	pendingEntries mapset.Set[string]
	pendingFolders mapset.Set[string]
}

// New creates an empty cache over the given codec. A nil notifier disables
// notifications.
func New(codec metafile.Codec, notifier Notifier) *Synchronizer {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Synchronizer{
		codec:    codec,
		notifier: notifier,
		entries:  make(map[string]*entrySlot),
		folders:  make(map[string]*folderSlot),
		// the cache's own mutex guards these
		pendingEntries: mapset.NewThreadUnsafeSet[string](),
		pendingFolders: mapset.NewThreadUnsafeSet[string](),
	}
}

// ResourceSync returns the sync record for a file or folder, or nil if it
// has none. The owning directory's entries are read in one pass on first
// access.
func (s *Synchronizer) ResourceSync(path string) (*syncinfo.ResourceSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resourceSync(filepath.Clean(path), false)
}

// SetResourceSync associates a record with a file or folder. The resource
// need not exist on disk, but its parent must carry a binding marker. The
// mutation stays in memory until Save.
func (s *Synchronizer) SetResourceSync(path string, info *syncinfo.ResourceSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setResourceSync(filepath.Clean(path), info)
}

// DeleteResourceSync removes a resource's record and eagerly broadcasts a
// state change: "no sync state" is something dependent views need right away.
// The on-disk entries file is untouched until Save.
func (s *Synchronizer) DeleteResourceSync(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteResourceSync(filepath.Clean(path))
	return nil
}

// FolderSync returns a directory's repository binding, or nil if the
// directory is not under version control.
func (s *Synchronizer) FolderSync(dir string) (*syncinfo.FolderSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folderSync(filepath.Clean(dir), false)
}

// SetFolderSync binds a directory to a repository location, replacing any
// previous binding wholesale. The directory must exist on disk. If the
// parent directory is itself bound, the directory is registered as an entry
// of its parent.
func (s *Synchronizer) SetFolderSync(dir string, info *syncinfo.FolderSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setFolderSync(filepath.Clean(dir), info)
}

// DeleteFolderSync removes the binding and all sync records of a directory
// and every known descendant, children before parents. Known means cached:
// disk is not rescanned.
func (s *Synchronizer) DeleteFolderSync(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFolderSync(filepath.Clean(dir))
	return nil
}

// Members returns the cached records of a directory's children, reading the
// entries file if the directory has not been seen yet. Records may describe
// resources that no longer exist on disk, e.g. pending deletions.
func (s *Synchronizer) Members(dir string) ([]*syncinfo.ResourceSync, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir = filepath.Clean(dir)
	slot := s.entries[dir]
	if slot == nil {
		var err error
		slot, err = s.readEntries(dir)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			return nil, nil
		}
	}

	members := make([]*syncinfo.ResourceSync, 0, len(slot.records))
	for _, record := range slot.records {
		members = append(members, record)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

// Save flushes exactly the pending directories: entries files first, folder
// bindings second. A write failure aborts immediately and keeps the pending
// sets, so the next Save retries everything still unflushed. Directories
// whose slot was removed since being marked (deleted folder sync) are
// skipped; such partial saves count as success.
func (s *Synchronizer) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// Clear empties the cache so that subsequent reads come from disk. Calling
// it with unsaved changes is a contract violation and returns
// ErrPendingChanges.
func (s *Synchronizer) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pendingEntries.IsEmpty() || !s.pendingFolders.IsEmpty() {
		return fmt.Errorf("%w: clear refused", ErrPendingChanges)
	}
	s.entries = make(map[string]*entrySlot)
	s.folders = make(map[string]*folderSlot)
	return nil
}

// IsEmpty reports whether nothing is cached.
func (s *Synchronizer) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) == 0 && len(s.folders) == 0
}

// HasPending reports whether any mutation awaits Save.
func (s *Synchronizer) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.pendingEntries.IsEmpty() || !s.pendingFolders.IsEmpty()
}

// ----- internals, caller holds s.mu -----

func (s *Synchronizer) resourceSync(path string, force bool) (*syncinfo.ResourceSync, error) {
	dir := filepath.Dir(path)
	slot := s.entries[dir]
	if slot == nil || force {
		var err error
		slot, err = s.readEntries(dir)
		if err != nil {
			return nil, err
		}
		if slot == nil {
			return nil, nil
		}
	}
	return slot.records[filepath.Base(path)], nil
}

// readEntries re-populates dir's entries slot from disk. Returns nil when
// the entries file is absent, in which case any stale slot is evicted.
func (s *Synchronizer) readEntries(dir string) (*entrySlot, error) {
	records, err := s.codec.ReadEntries(dir)
	if err != nil {
		return nil, fmt.Errorf("read sync entries for %s: %w", dir, err)
	}
	if records == nil {
		delete(s.entries, dir)
		return nil, nil
	}

	slot := newEntrySlot()
	for _, record := range records {
		slot.records[record.Name] = record
	}
	if ts, err := s.codec.MarkerModTime(dir); err == nil {
		slot.timestamp = ts
	}
	s.entries[dir] = slot
	return slot, nil
}

func (s *Synchronizer) setResourceSync(path string, info *syncinfo.ResourceSync) error {
	if info == nil {
		return fmt.Errorf("set resource sync %s: nil record", path)
	}
	name := filepath.Base(path)
	if info.Name != name {
		return fmt.Errorf("%w: record %q, resource %q", ErrNameMismatch, info.Name, name)
	}

	dir := filepath.Dir(path)
	if !s.codec.HasBinding(dir) {
		return fmt.Errorf("%w: %s", ErrNotManaged, dir)
	}

	slot := s.entries[dir]
	if slot == nil {
		slot = newEntrySlot()
		s.entries[dir] = slot
	}
	slot.records[info.Name] = info
	s.pendingEntries.Add(dir)
	return nil
}

func (s *Synchronizer) deleteResourceSync(path string) {
	dir := filepath.Dir(path)
	slot := s.entries[dir]
	if slot == nil {
		return
	}
	delete(slot.records, filepath.Base(path))
	s.pendingEntries.Add(dir)
	s.broadcastSyncChange([]string{path}, true)
}

func (s *Synchronizer) folderSync(dir string, force bool) (*syncinfo.FolderSync, error) {
	slot := s.folders[dir]
	if slot == nil || force {
		if !utils.DirExists(dir) {
			return nil, nil
		}
		info, err := s.codec.ReadFolderSync(dir)
		if err != nil {
			return nil, fmt.Errorf("read folder sync for %s: %w", dir, err)
		}
		if info == nil {
			// no binding marker; absence is not cached
			return nil, nil
		}
		slot = &folderSlot{info: info}
		s.folders[dir] = slot
	}
	return slot.info, nil
}

func (s *Synchronizer) setFolderSync(dir string, info *syncinfo.FolderSync) error {
	if info == nil {
		return fmt.Errorf("set folder sync %s: nil record", dir)
	}
	if !utils.DirExists(dir) {
		return fmt.Errorf("%w: %s", ErrFolderMissing, dir)
	}
	if err := s.codec.EnsureBinding(dir); err != nil {
		return fmt.Errorf("set folder sync %s: %w", dir, err)
	}

	// A bound parent must list this folder among its entries.
	parentInfo, err := s.folderSync(filepath.Dir(dir), false)
	if err != nil {
		return err
	}
	if parentInfo != nil {
		if err := s.setResourceSync(dir, syncinfo.NewDirectorySync(filepath.Base(dir))); err != nil {
			return err
		}
	}

	// Folder bindings are replaced, never merged.
	s.folders[dir] = &folderSlot{info: info}
	s.pendingFolders.Add(dir)
	return nil
}

func (s *Synchronizer) deleteFolderSync(dir string) {
	for _, child := range s.cachedMembers(dir) {
		if child.Directory {
			s.deleteFolderSync(filepath.Join(dir, child.Name))
		}
	}
	s.deleteFolderAndChildEntries(dir, true)
}

// cachedMembers returns child records from the cache only. DeleteFolderSync
// treats the cached listing as authoritative and never rescans disk.
func (s *Synchronizer) cachedMembers(dir string) []*syncinfo.ResourceSync {
	slot := s.entries[dir]
	if slot == nil {
		return nil
	}
	members := make([]*syncinfo.ResourceSync, 0, len(slot.records))
	for _, record := range slot.records {
		members = append(members, record)
	}
	return members
}

// deleteFolderAndChildEntries drops a single folder's slots. When
// deleteResourceSync is set the folder's own record is also removed from its
// parent's entries; reload's now-unversioned path uses the same flow.
func (s *Synchronizer) deleteFolderAndChildEntries(dir string, deleteResourceSync bool) {
	delete(s.entries, dir)
	if deleteResourceSync {
		s.deleteResourceSync(dir)
	}
	delete(s.folders, dir)
	s.broadcastSyncChange([]string{dir}, true)
}

func (s *Synchronizer) save() error {
	var filesToUpdate []string

	for _, dir := range s.pendingEntries.ToSlice() {
		slot := s.entries[dir]
		// slot may have been removed by an intervening DeleteFolderSync
		if slot == nil {
			continue
		}

		records := make([]*syncinfo.ResourceSync, 0, len(slot.records))
		for _, record := range slot.records {
			records = append(records, record)
			filesToUpdate = append(filesToUpdate, filepath.Join(dir, record.Name))
		}

		if err := s.codec.WriteEntries(dir, records); err != nil {
			return fmt.Errorf("save sync entries for %s: %w", dir, err)
		}
		s.broadcastSyncChange(s.codec.MetadataFiles(dir), false)
	}

	for _, dir := range s.pendingFolders.ToSlice() {
		slot := s.folders[dir]
		if slot == nil {
			continue
		}

		if err := s.codec.WriteFolderSync(dir, slot.info); err != nil {
			return fmt.Errorf("save folder sync for %s: %w", dir, err)
		}
		if ts, err := s.codec.MarkerModTime(dir); err == nil {
			slot.timestamp = ts
		} else {
			slog.Warn("could not stat binding marker after save", "dir", dir, "error", err)
		}
		s.broadcastSyncChange(s.codec.MetadataFiles(dir), false)
	}

	if len(filesToUpdate) > 0 {
		s.broadcastSyncChange(filesToUpdate, true)
	}

	s.pendingEntries.Clear()
	s.pendingFolders.Clear()
	return nil
}

// broadcastSyncChange maps paths to refresh targets. A path that no longer
// exists is notified through its parent, one level deep, matching what a
// listener can actually re-read.
func (s *Synchronizer) broadcastSyncChange(paths []string, stateChange bool) {
	if len(paths) == 0 {
		return
	}

	resolved := make([]string, 0, len(paths))
	deep := false
	for _, path := range paths {
		if !utils.PathExists(path) {
			path = filepath.Dir(path)
			deep = true
		}
		resolved = append(resolved, path)
	}

	s.notifier.Refresh(resolved, deep)
	if stateChange {
		s.notifier.BroadcastStateChanged(paths)
	}
}
