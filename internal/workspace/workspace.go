// Package workspace is the handle to a working copy on disk: resolved paths
// for process-level state plus a file lock keeping concurrent instances out.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openvcs/vcsync/internal/utils"
)

const (
	// StateDir holds process-level state at the working-copy root. Distinct
	// from the per-directory binding markers, which belong to the codec.
	StateDir = ".vcsync"

	lockFile    = "vcsync.lock"
	journalFile = "journal.db"
)

var ErrWorkingCopyLocked = errors.New("working copy locked by another process")

type WorkingCopy struct {
	Root        string
	StateDir    string
	JournalPath string

	flock *flock.Flock
}

func New(rootDir string) (*WorkingCopy, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve working copy root %s: %w", rootDir, err)
	}
	if !utils.DirExists(root) {
		return nil, fmt.Errorf("working copy root %s is not a directory", root)
	}

	stateDir := filepath.Join(root, StateDir)
	return &WorkingCopy{
		Root:        root,
		StateDir:    stateDir,
		JournalPath: filepath.Join(stateDir, journalFile),
		flock:       flock.New(filepath.Join(stateDir, lockFile)),
	}, nil
}

// Lock takes the working-copy lock, failing immediately if another process
// holds it.
func (w *WorkingCopy) Lock() error {
	if err := utils.EnsureDir(w.StateDir); err != nil {
		return fmt.Errorf("create state directory %s: %w", w.StateDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire working copy lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrWorkingCopyLocked, w.Root)
	}

	slog.Debug("working copy locked", "root", w.Root)
	return nil
}

func (w *WorkingCopy) Unlock() error {
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("release working copy lock: %w", err)
	}
	return nil
}
