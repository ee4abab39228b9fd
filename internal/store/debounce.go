package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ultrasop/ultrasop/internal/sop"
)

// DefaultQuietPeriod is how long the store waits after the last edit before
// writing to the backend. Edits within the window coalesce into one save.
const DefaultQuietPeriod = 750 * time.Millisecond

// debouncer fires fn once per quiet period. Its mutex doubles as the store
// lock so marking a document dirty and resetting the timer are atomic.
type debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	timer   *time.Timer
	fn      func(ctx context.Context)
	stopped bool
}

func newDebouncer(quiet time.Duration, fn func(ctx context.Context)) *debouncer {
	return &debouncer{quiet: quiet, fn: fn}
}

// bump restarts the quiet-period timer. Callers must hold mu.
func (db *debouncer) bump() {
	if db.stopped {
		return
	}
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.quiet, func() {
		db.fn(context.Background())
	})
}

// flushNow cancels any pending timer and runs fn synchronously.
func (db *debouncer) flushNow(ctx context.Context) {
	db.mu.Lock()
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
	db.mu.Unlock()
	db.fn(ctx)
}

// stop cancels the timer and prevents further scheduling.
func (db *debouncer) stop() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.stopped = true
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}

// markDirtyLocked records a snapshot of the document for the next flush and
// restarts the debounce timer. Callers must hold the store lock. Snapshots
// keep the flush free of races with concurrent mutations.
func (s *Store) markDirtyLocked(d *sop.Document) {
	if s.pending == nil {
		s.pending = make(map[uuid.UUID]*sop.Document)
	}
	s.pending[d.ID] = d.Clone()
	s.debounce.bump()
}

// flushPending drains the dirty set and saves each document. A failed save
// is logged and dropped; the next edit re-queues the document.
func (s *Store) flushPending(ctx context.Context) {
	s.debounce.mu.Lock()
	if len(s.pending) == 0 {
		s.debounce.mu.Unlock()
		return
	}
	batch := s.pending
	s.pending = nil
	s.debounce.mu.Unlock()

	for _, d := range batch {
		if err := s.backend.SaveDocument(ctx, d); err != nil {
			s.logger.Error("autosave failed", "doc", d.ID, "error", err)
			continue
		}
		s.adoptRemoteID(d)
		s.logger.Debug("autosaved document", "doc", d.ID)
	}
}

// adoptRemoteID copies a backend-assigned row id from a saved snapshot back
// onto the live document.
func (s *Store) adoptRemoteID(saved *sop.Document) {
	if saved.RemoteID == "" {
		return
	}
	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == saved.ID {
			d.RemoteID = saved.RemoteID
			return
		}
	}
}
