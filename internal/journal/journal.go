// Package journal persists a history of sync-state change notifications, so
// that "what changed while I wasn't looking" survives process restarts.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
	"github.com/openvcs/vcsync/internal/db"
	"github.com/openvcs/vcsync/internal/events"
)

const schema = `
CREATE TABLE IF NOT EXISTS change_journal (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,
    deep INTEGER NOT NULL DEFAULT 0,
    observed_at TEXT NOT NULL -- RFC3339
);

CREATE INDEX IF NOT EXISTS idx_journal_path ON change_journal(path);
CREATE INDEX IF NOT EXISTS idx_journal_observed ON change_journal(observed_at);
`

// dedupeCacheSize bounds the per-path last-kind cache used to drop
// consecutive duplicate notifications.
const dedupeCacheSize = 512

// Entry is one recorded notification.
type Entry struct {
	ID         string `db:"id" json:"id"`
	Path       string `db:"path" json:"path"`
	Kind       string `db:"kind" json:"kind"`
	Deep       bool   `db:"deep" json:"deep"`
	ObservedAt string `db:"observed_at" json:"observed_at"`
}

// ChangeJournal records events from a hub subscription into SQLite.
type ChangeJournal struct {
	db     *sqlx.DB
	dbPath string
	recent *lru.Cache[string, events.Kind]
}

func NewChangeJournal(dbPath string) (*ChangeJournal, error) {
	recent, err := lru.New[string, events.Kind](dedupeCacheSize)
	if err != nil {
		return nil, err
	}
	return &ChangeJournal{dbPath: dbPath, recent: recent}, nil
}

// Open the journal and the underlying database.
func (j *ChangeJournal) Open() error {
	if j.db != nil {
		return errors.New("change journal already open")
	}

	database, err := db.NewSqliteDb(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open change journal: %w", err)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return fmt.Errorf("initialize journal schema: %w", err)
	}

	j.db = database
	return nil
}

func (j *ChangeJournal) Close() error {
	if j.db == nil {
		return errors.New("change journal not open")
	}
	if err := j.db.Close(); err != nil {
		return err
	}
	j.db = nil
	slog.Debug("change journal closed")
	return nil
}

// Append records one notification. A notification identical in kind to the
// last one recorded for the same path is dropped.
func (j *ChangeJournal) Append(kind events.Kind, path string, deep bool) error {
	if last, ok := j.recent.Get(path); ok && last == kind {
		return nil
	}

	entry := &Entry{
		ID:         uuid.NewString(),
		Path:       path,
		Kind:       string(kind),
		Deep:       deep,
		ObservedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	query := `INSERT INTO change_journal (id, path, kind, deep, observed_at)
	          VALUES (:id, :path, :kind, :deep, :observed_at)`
	if _, err := j.db.NamedExec(query, entry); err != nil {
		return fmt.Errorf("append journal entry for %s: %w", path, err)
	}

	j.recent.Add(path, kind)
	return nil
}

// Recent returns the newest entries, newest first.
func (j *ChangeJournal) Recent(limit int) ([]*Entry, error) {
	var entries []*Entry
	err := j.db.Select(&entries,
		"SELECT id, path, kind, deep, observed_at FROM change_journal ORDER BY observed_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return entries, nil
}

// Count returns the number of recorded entries.
func (j *ChangeJournal) Count() (int, error) {
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM change_journal"); err != nil {
		return 0, fmt.Errorf("count journal entries: %w", err)
	}
	return count, nil
}

// Run consumes a hub subscription until the context is cancelled or the
// channel closes. Recording failures are logged, never fatal: the journal is
// an observer, not a dependency of the cache.
func (j *ChangeJournal) Run(ctx context.Context, sub <-chan *events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub:
			if !ok {
				return
			}
			for _, path := range event.Paths {
				if err := j.Append(event.Kind, path, event.Deep); err != nil {
					slog.Warn("journal append failed", "path", path, "error", err)
				}
			}
		}
	}
}
