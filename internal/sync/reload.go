package sync

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/openvcs/vcsync/internal/tree"
)

// ReloadTotalWork is the fixed progress budget reported by Reload. The
// schedule converges toward it without knowing the tree size in advance:
// report one unit every 4 folders, and every time cumulative work crosses
// the current halfway mark, double the interval and move the mark half of
// the remaining distance. Progress therefore never stalls and never
// completes before the walk does.
const ReloadTotalWork = 250

const initialProgressIncrement = 4

// ProgressFunc receives monotone progress updates, worked <= total.
type ProgressFunc func(worked, total int)

// reloadWalk carries per-invocation state: the progress schedule and the
// paths evicted as now-unversioned during this walk. The walk is depth first,
// so a parent's force-reread happens after its children were processed and
// would otherwise resurrect an evicted child's record from the still-unsaved
// entries file.
type reloadWalk struct {
	progress *reloadProgress
	evicted  []string
}

// reloadProgress is per-invocation; concurrent reloads on different caches
// do not share schedule state.
type reloadProgress struct {
	report    ProgressFunc
	worked    int
	halfway   int
	increment int
	next      int
}

func newReloadProgress(report ProgressFunc) *reloadProgress {
	return &reloadProgress{
		report:    report,
		halfway:   ReloadTotalWork / 2,
		increment: initialProgressIncrement,
		next:      initialProgressIncrement,
	}
}

// step accounts for one processed folder.
func (p *reloadProgress) step() {
	p.next--
	if p.next > 0 {
		return
	}
	// The final unit belongs to done(); the schedule alone never completes.
	if p.worked < ReloadTotalWork-1 {
		p.worked++
		if p.report != nil {
			p.report(p.worked, ReloadTotalWork)
		}
	}
	if p.worked >= p.halfway {
		p.increment *= 2
		p.halfway += (ReloadTotalWork - p.halfway) / 2
	}
	p.next = p.increment
}

func (p *reloadProgress) done() {
	if p.report != nil {
		p.report(ReloadTotalWork, ReloadTotalWork)
	}
}

// Reload re-reads sync metadata from disk for a resource and, depth first,
// all its descendants. It is the recovery path after the working copy was
// changed behind the cache's back, e.g. by an external tool.
//
// Cancellation is checked at every recursion step. A cancelled reload leaves
// fresh data for the subtree prefix already walked and stale cached data
// elsewhere; the next lazy read or reload resolves the staleness.
func (s *Synchronizer) Reload(ctx context.Context, res tree.Resource, report ProgressFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	walk := &reloadWalk{progress: newReloadProgress(report)}
	defer walk.progress.done()
	return s.doReload(ctx, res, walk)
}

func (s *Synchronizer) doReload(ctx context.Context, res tree.Resource, walk *reloadWalk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	folder, ok := res.(tree.Folder)
	if !ok {
		// file node: force a reread of the parent's entries
		_, err := s.resourceSync(res.Path(), true)
		return err
	}

	children, err := folder.Folders()
	if err != nil {
		return fmt.Errorf("reload %s: %w", folder.Path(), err)
	}
	for _, child := range children {
		if err := s.doReload(ctx, child, walk); err != nil {
			return err
		}
	}

	dir := folder.Path()
	info, err := s.folderSync(dir, true)
	if err != nil {
		return err
	}
	if info == nil {
		// The binding vanished on disk: the folder is now unversioned.
		// Drop its entries and its record in the parent, but leave the
		// parent's own binding alone.
		s.deleteFolderAndChildEntries(dir, true)
		walk.evicted = append(walk.evicted, dir)
	} else {
		slot, err := s.readEntries(dir)
		if err != nil {
			return err
		}
		// The reread comes straight from the unsaved entries file, which
		// still lists children evicted earlier in this walk. Re-apply
		// their deletions so Save persists the eviction.
		if slot != nil {
			for _, path := range walk.evicted {
				if filepath.Dir(path) != dir {
					continue
				}
				name := filepath.Base(path)
				if _, ok := slot.records[name]; ok {
					delete(slot.records, name)
					s.pendingEntries.Add(dir)
				}
			}
		}
	}

	walk.progress.step()
	return nil
}
