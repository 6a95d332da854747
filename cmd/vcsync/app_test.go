package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openvcs/vcsync/internal/syncinfo"
)

func TestNewAppRejectsMissingRoot(t *testing.T) {
	if _, err := newApp(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing working copy root")
	}
}

func TestNewAppWiresSynchronizer(t *testing.T) {
	root := t.TempDir()
	application, err := newApp(root)
	if err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(root, "mod")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	sub := application.hub.Subscribe()
	defer application.hub.Unsubscribe(sub)

	s := application.synchronizer
	if err := s.SetFolderSync(dir, &syncinfo.FolderSync{Root: "r", Repository: "m"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	select {
	case <-sub:
		// save notified through the shared hub
	default:
		t.Fatal("expected a notification after save")
	}
}
