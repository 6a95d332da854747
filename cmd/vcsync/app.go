package main

import (
	"github.com/openvcs/vcsync/internal/events"
	"github.com/openvcs/vcsync/internal/metafile"
	"github.com/openvcs/vcsync/internal/sync"
	"github.com/openvcs/vcsync/internal/workspace"
)

// app bundles the long-lived instances every command works against. The
// synchronizer is constructed once here and passed around explicitly; there
// is no package-global cache.
type app struct {
	wc           *workspace.WorkingCopy
	hub          *events.Hub
	synchronizer *sync.Synchronizer
}

func newApp(rootDir string) (*app, error) {
	wc, err := workspace.New(rootDir)
	if err != nil {
		return nil, err
	}

	hub := events.NewHub()
	return &app{
		wc:           wc,
		hub:          hub,
		synchronizer: sync.New(metafile.NewDirCodec(), hub),
	}, nil
}
