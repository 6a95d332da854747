// Package events distributes sync-state change notifications to interested
// listeners. Delivery is fire-and-forget: a slow or full subscriber never
// blocks the cache.
package events

import (
	"log/slog"
	"os"
	"sync"
)

const eventBufferSize = 64

type Kind string

const (
	// KindRefresh asks listeners to re-read the named paths from disk, e.g.
	// after metadata files were rewritten.
	KindRefresh Kind = "refresh"
	// KindStateChanged signals that the version-control state of the named
	// paths changed.
	KindStateChanged Kind = "state-changed"
)

type Event struct {
	Kind  Kind
	Paths []string
	// Deep marks a refresh that covers the children of each path, used when
	// a notified path no longer exists and its parent stands in for it.
	Deep bool
}

// Hub fans events out to subscriber channels.
type Hub struct {
	mu   sync.RWMutex
	subs []chan *Event
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe returns a channel receiving all future events.
func (h *Hub) Subscribe() <-chan *Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan *Event, eventBufferSize)
	h.subs = append(h.subs, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (h *Hub) Unsubscribe(ch <-chan *Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subs {
		if sub == ch {
			close(sub)
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
}

// Close drops all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		close(sub)
	}
	h.subs = nil
}

// Refresh notifies listeners that the given paths should be re-read from
// disk. Best effort: paths that cannot be statted are logged and skipped,
// never surfaced to the caller.
func (h *Hub) Refresh(paths []string, deep bool) {
	live := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			slog.Debug("refresh skipped", "path", path, "error", err)
			continue
		}
		live = append(live, path)
	}
	if len(live) == 0 {
		return
	}
	h.emit(&Event{Kind: KindRefresh, Paths: live, Deep: deep})
}

// BroadcastStateChanged signals a version-control state change for the given
// paths.
func (h *Hub) BroadcastStateChanged(paths []string) {
	if len(paths) == 0 {
		return
	}
	h.emit(&Event{Kind: KindStateChanged, Paths: paths})
}

func (h *Hub) emit(event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip to avoid blocking.
		}
	}
}
