// Package watch observes the working copy for changes made behind the
// cache's back: external removals of managed resources and external rewrites
// of metadata files. It reports observations; reacting to them (delete
// folder sync, save, reload) is the subscriber's job.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/openvcs/vcsync/internal/metafile"
	"github.com/openvcs/vcsync/internal/workspace"
	"github.com/rjeczalik/notify"
)

const (
	rawBufferSize          = 64
	eventBufferSize        = 64
	defaultDebounceTimeout = 50 * time.Millisecond
)

type Op string

const (
	// OpRemoved: a non-metadata path disappeared from the working copy.
	OpRemoved Op = "removed"
	// OpMetaChanged: a metadata file was written externally; Path is the
	// owning directory, a reload candidate.
	OpMetaChanged Op = "meta-changed"
)

type Event struct {
	Path string
	Op   Op
}

type Watcher struct {
	root      string
	rawEvents chan notify.EventInfo
	events    chan Event
	done      chan struct{}
	wg        sync.WaitGroup

	debounceMu      sync.Mutex
	eventTimers     map[string]*time.Timer
	pendingEvents   map[string]Event
	debounceTimeout time.Duration
}

func NewWatcher(root string) *Watcher {
	return &Watcher{
		root:            root,
		done:            make(chan struct{}),
		eventTimers:     make(map[string]*time.Timer),
		pendingEvents:   make(map[string]Event),
		debounceTimeout: defaultDebounceTimeout,
	}
}

// SetDebounceTimeout sets the per-path coalescing window.
func (w *Watcher) SetDebounceTimeout(timeout time.Duration) {
	w.debounceTimeout = timeout
}

// Events yields debounced observations. Valid after Start.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("watcher start", "root", w.root)

	w.rawEvents = make(chan notify.EventInfo, rawBufferSize)
	w.events = make(chan Event, eventBufferSize)

	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.rawEvents, notify.Create, notify.Write, notify.Remove, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.translate(ctx)
	return nil
}

func (w *Watcher) Stop() {
	slog.Info("watcher stopping")
	close(w.done)
	notify.Stop(w.rawEvents)
	w.wg.Wait()

	w.debounceMu.Lock()
	for path, timer := range w.eventTimers {
		timer.Stop()
		delete(w.eventTimers, path)
		delete(w.pendingEvents, path)
	}
	w.debounceMu.Unlock()
	// w.events stays open; consumers exit via their context.
}

func (w *Watcher) translate(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case raw, ok := <-w.rawEvents:
			if !ok {
				return
			}
			if event, ok := w.classify(raw); ok {
				w.debounce(event)
			}
		}
	}
}

// classify maps a raw filesystem event to an observation, or drops it.
func (w *Watcher) classify(raw notify.EventInfo) (Event, bool) {
	path := raw.Path()

	// process-level state is never interesting
	if strings.Contains(path, string(filepath.Separator)+workspace.StateDir+string(filepath.Separator)) ||
		filepath.Base(path) == workspace.StateDir {
		return Event{}, false
	}

	if dir, ok := owningDir(path); ok {
		switch raw.Event() {
		case notify.Create, notify.Write, notify.Remove, notify.Rename:
			return Event{Path: dir, Op: OpMetaChanged}, true
		}
		return Event{}, false
	}

	switch raw.Event() {
	case notify.Remove, notify.Rename:
		return Event{Path: path, Op: OpRemoved}, true
	}
	return Event{}, false
}

// owningDir returns the directory owning a metadata path: for
// /wc/a/.vcs/entries it is /wc/a.
func owningDir(path string) (string, bool) {
	sep := string(filepath.Separator)
	marker := sep + metafile.MetaDir + sep
	if i := strings.LastIndex(path, marker); i >= 0 {
		return path[:i], true
	}
	if filepath.Base(path) == metafile.MetaDir {
		return filepath.Dir(path), true
	}
	return "", false
}

// debounce coalesces bursts per path; the last event in a window wins.
func (w *Watcher) debounce(event Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	key := string(event.Op) + ":" + event.Path
	w.pendingEvents[key] = event

	if timer, ok := w.eventTimers[key]; ok {
		timer.Reset(w.debounceTimeout)
		return
	}

	w.eventTimers[key] = time.AfterFunc(w.debounceTimeout, func() {
		w.debounceMu.Lock()
		pending, ok := w.pendingEvents[key]
		delete(w.pendingEvents, key)
		delete(w.eventTimers, key)
		w.debounceMu.Unlock()
		if !ok {
			return
		}

		select {
		case <-w.done:
			return
		default:
		}
		select {
		case w.events <- pending:
		default:
			slog.Warn("watcher event dropped, buffer full", "path", pending.Path, "op", pending.Op)
		}
	})
}
