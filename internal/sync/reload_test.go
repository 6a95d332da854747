package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openvcs/vcsync/internal/metafile"
	"github.com/openvcs/vcsync/internal/syncinfo"
	"github.com/openvcs/vcsync/internal/tree"
)

func TestReloadPicksUpExternalChanges(t *testing.T) {
	s, _, root := newTestSynchronizer(t)
	wc := filepath.Join(root, "wc")
	bindDir(t, s, wc)
	if err := s.SetResourceSync(filepath.Join(wc, "a.txt"), &syncinfo.ResourceSync{Name: "a.txt", Revision: "1.1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	// An external tool rewrites the entries file behind the cache's back.
	codec := metafile.NewDirCodec()
	if err := codec.WriteEntries(wc, []*syncinfo.ResourceSync{
		{Name: "a.txt", Revision: "1.2"},
	}); err != nil {
		t.Fatal(err)
	}

	// Cache still sees the stale revision.
	got, err := s.ResourceSync(filepath.Join(wc, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Revision != "1.1" {
		t.Fatalf("expected stale 1.1 before reload, got %s", got.Revision)
	}

	if err := s.Reload(context.Background(), tree.NewDiskFolder(wc, nil), nil); err != nil {
		t.Fatal(err)
	}

	got, err = s.ResourceSync(filepath.Join(wc, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Revision != "1.2" {
		t.Fatalf("expected 1.2 after reload, got %s", got.Revision)
	}
}

func TestReloadEvictsUnversionedFolder(t *testing.T) {
	s, _, root := newTestSynchronizer(t)
	wc := filepath.Join(root, "wc")
	bindDir(t, s, wc)
	child := filepath.Join(wc, "sub")
	bindDir(t, s, child)
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	// The child's binding marker disappears, e.g. removed by hand.
	if err := os.RemoveAll(filepath.Join(child, metafile.MetaDir)); err != nil {
		t.Fatal(err)
	}

	if err := s.Reload(context.Background(), tree.NewDiskFolder(wc, nil), nil); err != nil {
		t.Fatal(err)
	}

	folder, err := s.FolderSync(child)
	if err != nil {
		t.Fatal(err)
	}
	if folder != nil {
		t.Fatalf("expected child binding gone, got %+v", folder)
	}

	// The child's own entry in the parent is evicted too.
	record, err := s.ResourceSync(child)
	if err != nil {
		t.Fatal(err)
	}
	if record != nil {
		t.Fatalf("expected no parent entry for child, got %+v", record)
	}

	// The parent's own binding is untouched.
	parent, err := s.FolderSync(wc)
	if err != nil {
		t.Fatal(err)
	}
	if parent == nil {
		t.Fatal("expected parent binding to survive")
	}
}

func TestReloadEvictionSurvivesSave(t *testing.T) {
	s, _, root := newTestSynchronizer(t)
	wc := filepath.Join(root, "wc")
	bindDir(t, s, wc)
	child := filepath.Join(wc, "sub")
	bindDir(t, s, child)
	if err := s.SetResourceSync(filepath.Join(wc, "a.txt"), &syncinfo.ResourceSync{Name: "a.txt", Revision: "1.1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(filepath.Join(child, metafile.MetaDir)); err != nil {
		t.Fatal(err)
	}

	// The depth-first walk rereads the parent's entries after evicting the
	// child; the eviction must not be resurrected from the unsaved file.
	if err := s.Reload(context.Background(), tree.NewDiskFolder(wc, nil), nil); err != nil {
		t.Fatal(err)
	}
	if !s.HasPending() {
		t.Fatal("expected eviction to leave the parent pending")
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	records, err := metafile.NewDirCodec().ReadEntries(wc)
	if err != nil {
		t.Fatal(err)
	}
	for _, record := range records {
		if record.Name == "sub" {
			t.Fatalf("expected sub dropped from entries file, got %+v", records)
		}
	}
	if len(records) != 1 || records[0].Name != "a.txt" {
		t.Fatalf("expected only a.txt to survive, got %+v", records)
	}
}

func TestReloadCancellation(t *testing.T) {
	s, _, root := newTestSynchronizer(t)
	wc := filepath.Join(root, "wc")
	bindDir(t, s, wc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Reload(ctx, tree.NewDiskFolder(wc, nil), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReloadProgressMonotoneAndBounded(t *testing.T) {
	s, _, root := newTestSynchronizer(t)
	wc := filepath.Join(root, "wc")
	bindDir(t, s, wc)
	for _, name := range []string{"a", "b", "c"} {
		bindDir(t, s, filepath.Join(wc, name))
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	var reports []int
	report := func(worked, total int) {
		if total != ReloadTotalWork {
			t.Fatalf("unexpected total %d", total)
		}
		reports = append(reports, worked)
	}

	if err := s.Reload(context.Background(), tree.NewDiskFolder(wc, nil), report); err != nil {
		t.Fatal(err)
	}

	if len(reports) == 0 {
		t.Fatal("expected progress reports")
	}
	prev := 0
	for _, worked := range reports {
		if worked < prev {
			t.Fatalf("progress went backwards: %v", reports)
		}
		if worked > ReloadTotalWork {
			t.Fatalf("progress exceeded budget: %v", reports)
		}
		prev = worked
	}
	if reports[len(reports)-1] != ReloadTotalWork {
		t.Fatal("expected completion report")
	}
}

// The schedule crosses half the budget only after halfBudget*initialIncrement
// steps, then keeps doubling the interval, so it converges without ever
// finishing early.
func TestProgressScheduleConvergence(t *testing.T) {
	progress := newReloadProgress(nil)

	half := ReloadTotalWork / 2
	crossedAt := -1
	for step := 1; step <= 100000; step++ {
		progress.step()
		if crossedAt < 0 && progress.worked >= half {
			crossedAt = step
		}
		if progress.worked > ReloadTotalWork {
			t.Fatalf("worked %d exceeded budget at step %d", progress.worked, step)
		}
	}

	if crossedAt != half*initialProgressIncrement {
		t.Fatalf("expected halfway crossing at step %d, got %d", half*initialProgressIncrement, crossedAt)
	}
	if progress.worked >= ReloadTotalWork {
		t.Fatalf("schedule must never complete on its own, got %d", progress.worked)
	}
}

func TestReloadRefreshesEntriesTimestamp(t *testing.T) {
	s, _, root := newTestSynchronizer(t)
	wc := filepath.Join(root, "wc")
	bindDir(t, s, wc)
	if err := s.SetResourceSync(filepath.Join(wc, "a.txt"), &syncinfo.ResourceSync{Name: "a.txt", Revision: "1.1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	if err := s.Reload(context.Background(), tree.NewDiskFolder(wc, nil), nil); err != nil {
		t.Fatal(err)
	}

	slot := s.entries[wc]
	if slot == nil {
		t.Fatal("expected entries slot after reload")
	}
	if slot.timestamp.IsZero() {
		t.Fatal("expected marker timestamp recorded on reload")
	}
}
