package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openvcs/vcsync/internal/journal"
	"github.com/openvcs/vcsync/internal/tree"
	"github.com/openvcs/vcsync/internal/version"
	"github.com/openvcs/vcsync/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the working copy and keep sync metadata current",
	Long: "Watches for external changes: removals of managed folders drop their " +
		"sync state, rewritten metadata files trigger a reload of the affected " +
		"subtree. All observed changes are recorded in the journal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp(viper.GetString("root"))
		if err != nil {
			return err
		}

		if err := application.wc.Lock(); err != nil {
			return err
		}
		defer application.wc.Unlock()

		j, err := journal.NewChangeJournal(application.wc.JournalPath)
		if err != nil {
			return err
		}
		if err := j.Open(); err != nil {
			return err
		}
		defer j.Close()

		watcher := watch.NewWatcher(application.wc.Root)
		if err := watcher.Start(cmd.Context()); err != nil {
			return err
		}
		defer watcher.Stop()

		sub := application.hub.Subscribe()

		eg, egCtx := errgroup.WithContext(cmd.Context())
		eg.Go(func() error {
			j.Run(egCtx, sub)
			return nil
		})
		eg.Go(func() error {
			return handleWatchEvents(egCtx, application, watcher)
		})

		slog.Info("watching working copy", "root", application.wc.Root, "version", version.Short())
		if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func handleWatchEvents(ctx context.Context, application *app, watcher *watch.Watcher) error {
	s := application.synchronizer
	ignore := tree.NewIgnoreList(application.wc.Root)
	ignore.Load()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events():
			switch event.Op {
			case watch.OpRemoved:
				// A managed folder disappeared: drop its sync state, like
				// the resource-tree deletion listener of old.
				record, err := s.ResourceSync(event.Path)
				if err != nil {
					slog.Warn("could not look up removed path", "path", event.Path, "error", err)
					continue
				}
				if record == nil || !record.Directory {
					continue
				}
				if err := s.DeleteFolderSync(event.Path); err != nil {
					slog.Warn("could not delete folder sync", "path", event.Path, "error", err)
					continue
				}
				if err := s.Save(); err != nil {
					slog.Warn("could not save after folder removal", "path", event.Path, "error", err)
				}

			case watch.OpMetaChanged:
				if err := s.Reload(ctx, tree.NewDiskFolder(event.Path, ignore), nil); err != nil {
					slog.Warn("reload failed", "path", event.Path, "error", err)
					continue
				}
				if err := s.Save(); err != nil {
					slog.Warn("could not save after reload", "path", event.Path, "error", err)
				}
			}
		}
	}
}
