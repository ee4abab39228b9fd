// Package store holds the in-memory document set and the active selection,
// and keeps both synchronized to a persistence backend.
//
// All mutations go through the Store, which serializes them with a mutex and
// refreshes the document's modification timestamp. Saves triggered by rapid
// consecutive edits are coalesced by a debouncer so the backend sees one
// write per quiet period.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
)

// Sentinel errors. Callers check with errors.Is.
var (
	// ErrNotFound indicates the requested document is not in the store.
	// Selecting a missing document is signaled, never fatal.
	ErrNotFound = errors.New("document not found")
)

// Backend is the persistence capability set shared by the local and remote
// adapters. The interface is defined here, by the consumer.
type Backend interface {
	// Load reads all persisted documents. Implementations must recover
	// from unreadable state (corrupt or absent data) rather than fail.
	Load(ctx context.Context) ([]*sop.Document, error)

	// SaveDocument persists one document, creating or updating as needed.
	// Remote implementations record the assigned row id on the document.
	SaveDocument(ctx context.Context, d *sop.Document) error

	// SaveVersion persists one version snapshot for the document.
	SaveVersion(ctx context.Context, d *sop.Document, v sop.Version) error

	// DeleteDocument removes the document and its versions.
	DeleteDocument(ctx context.Context, d *sop.Document) error
}

// Store owns the document list and the active selection.
// Safe for concurrent use.
type Store struct {
	backend  Backend
	logger   log.Logger
	debounce *debouncer

	// guarded by debounce.mu
	docs     []*sop.Document
	activeID uuid.UUID
	pending  map[uuid.UUID]*sop.Document
}

// Option configures a Store.
type Option func(*Store)

// WithQuietPeriod overrides the autosave debounce interval.
func WithQuietPeriod(d time.Duration) Option {
	return func(s *Store) {
		s.debounce.quiet = d
	}
}

// New creates a Store, loading existing documents from the backend. An empty
// backend yields a single blank document so callers always have something to
// render.
func New(ctx context.Context, backend Backend, logger log.Logger, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	docs, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}

	s := &Store{
		backend: backend,
		logger:  logger,
	}
	s.debounce = newDebouncer(DefaultQuietPeriod, s.flushPending)
	for _, opt := range opts {
		opt(s)
	}
	s.docs = docs
	s.ensureNotEmpty()
	s.activeID = s.docs[0].ID
	return s, nil
}

// List returns snapshots of all documents in store order.
func (s *Store) List() []*sop.Document {
	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()

	out := make([]*sop.Document, len(s.docs))
	for i, d := range s.docs {
		out[i] = d.Clone()
	}
	return out
}

// Active returns a snapshot of the active document. The store guarantees an
// active document always exists.
func (s *Store) Active() *sop.Document {
	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()
	return s.mustActiveLocked().Clone()
}

// SetActive selects the document with the given id. Selecting a missing id
// leaves the current selection untouched and reports ErrNotFound.
func (s *Store) SetActive(id uuid.UUID) error {
	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()

	for _, d := range s.docs {
		if d.ID == id {
			s.activeID = id
			return nil
		}
	}
	return fmt.Errorf("selecting %s: %w", id, ErrNotFound)
}

// Create adds a new document with the given title at the front of the store
// and makes it active.
func (s *Store) Create(title string) *sop.Document {
	d := sop.NewDocument()
	d.Title = title
	return s.Insert(d)
}

// CreateFromTemplate instantiates a library template as a new active
// document.
func (s *Store) CreateFromTemplate(key string) (*sop.Document, error) {
	tpl, ok := sop.FindTemplate(key)
	if !ok {
		return nil, fmt.Errorf("template %q: %w", key, ErrNotFound)
	}
	return s.Insert(tpl.Instantiate()), nil
}

// Insert adopts an externally built document (template instantiation or a
// generation result), prepends it and makes it active.
func (s *Store) Insert(d *sop.Document) *sop.Document {
	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()

	s.docs = append([]*sop.Document{d}, s.docs...)
	s.activeID = d.ID
	s.markDirtyLocked(d)
	s.logger.Debug("created document", "id", d.ID, "title", d.Title)
	return d.Clone()
}

// UpdateActive applies the mutator to the active document under the store
// lock, refreshes its timestamp and schedules a debounced save. Returns a
// snapshot of the mutated document.
func (s *Store) UpdateActive(mutate func(*sop.Document)) *sop.Document {
	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()

	d := s.mustActiveLocked()
	mutate(d)
	d.Touch()
	s.markDirtyLocked(d)
	return d.Clone()
}

// SaveVersion snapshots the active document and persists the new version
// immediately rather than through the debounce, as an explicit user action.
func (s *Store) SaveVersion(ctx context.Context, notes string) (sop.Version, error) {
	s.debounce.mu.Lock()
	active := s.mustActiveLocked()
	v := active.SnapshotVersion(notes)
	s.markDirtyLocked(active)
	d := active.Clone()
	s.debounce.mu.Unlock()

	if err := s.backend.SaveVersion(ctx, d, v); err != nil {
		return sop.Version{}, fmt.Errorf("saving version %d: %w", v.N, err)
	}
	s.adoptRemoteID(d)
	s.logger.Debug("saved version", "doc", d.ID, "n", v.N)
	return v, nil
}

// Delete removes a document. When the active document is deleted the first
// remaining document becomes active; when the last document is deleted a
// blank one is synthesized so the store is never empty.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.debounce.mu.Lock()

	var victim *sop.Document
	for i, d := range s.docs {
		if d.ID == id {
			victim = d
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			break
		}
	}
	if victim == nil {
		s.debounce.mu.Unlock()
		return fmt.Errorf("deleting %s: %w", id, ErrNotFound)
	}
	// A queued autosave for the victim would resurrect it remotely.
	delete(s.pending, id)

	s.ensureNotEmpty()
	if s.activeID == id {
		s.activeID = s.docs[0].ID
	}
	s.debounce.mu.Unlock()

	if err := s.backend.DeleteDocument(ctx, victim); err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	s.logger.Debug("deleted document", "id", id)
	return nil
}

// Reload re-reads the persisted state, replacing the in-memory set. Used
// when another process (or browser tab, in the original design) wrote to
// the shared backend. A vanished active document falls back to the first
// remaining one.
func (s *Store) Reload(ctx context.Context) error {
	docs, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading documents: %w", err)
	}

	s.debounce.mu.Lock()
	defer s.debounce.mu.Unlock()

	s.docs = docs
	// Snapshots queued before the reload describe state the backend has
	// since superseded; flushing them would overwrite the fresher rows.
	s.pending = nil
	s.ensureNotEmpty()
	found := false
	for _, d := range s.docs {
		if d.ID == s.activeID {
			found = true
			break
		}
	}
	if !found {
		s.activeID = s.docs[0].ID
	}
	return nil
}

// Flush writes any pending debounced saves immediately. Call before
// shutdown.
func (s *Store) Flush(ctx context.Context) {
	s.debounce.flushNow(ctx)
}

// Close flushes pending saves and stops the debounce timer.
func (s *Store) Close(ctx context.Context) {
	s.debounce.stop()
	s.debounce.flushNow(ctx)
}

// mustActiveLocked resolves the active document, falling back to the first
// document. The store invariant guarantees at least one exists.
func (s *Store) mustActiveLocked() *sop.Document {
	for _, d := range s.docs {
		if d.ID == s.activeID {
			return d
		}
	}
	s.activeID = s.docs[0].ID
	return s.docs[0]
}

// ensureNotEmpty synthesizes one blank document when the store is empty.
func (s *Store) ensureNotEmpty() {
	if len(s.docs) == 0 {
		blank := sop.NewDocument()
		s.docs = []*sop.Document{blank}
		s.activeID = blank.ID
		s.markDirtyLocked(blank)
	}
}
