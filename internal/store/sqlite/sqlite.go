// Package sqlite is the local persistence backend: a single-user document
// file on disk. Documents are stored whole, with steps and version history
// encoded as JSON columns, mirroring how the store works with complete
// documents rather than normalized rows.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	remote_id  TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL,
	summary    TEXT NOT NULL,
	steps      TEXT NOT NULL,
	versions   TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	position   INTEGER NOT NULL
)`

const (
	selectAll = `SELECT id, remote_id, title, summary, steps, versions, updated_at
FROM documents ORDER BY position ASC, updated_at DESC`

	upsertDoc = `INSERT INTO documents (id, remote_id, title, summary, steps, versions, updated_at, position)
VALUES (?, ?, ?, ?, ?, ?, ?, COALESCE((SELECT MIN(position) FROM documents), 1) - 1)
ON CONFLICT (id) DO UPDATE SET
	remote_id = excluded.remote_id,
	title = excluded.title,
	summary = excluded.summary,
	steps = excluded.steps,
	versions = excluded.versions,
	updated_at = excluded.updated_at`

	deleteDoc = `DELETE FROM documents WHERE id = ?`
)

// Backend persists documents to a local sqlite file.
type Backend struct {
	db     *sql.DB
	logger log.Logger
}

// New opens (and if needed creates) the document database at path. Use
// ":memory:" for an ephemeral database.
func New(path string, logger log.Logger) (*Backend, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	// The driver serializes writes per connection; a single connection
	// avoids SQLITE_BUSY under concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Backend{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Load reads all documents in store order. An empty database yields the seed
// library so first launch has something to show. Rows that fail to decode
// are skipped; when every row is unreadable the seeds are returned instead
// of an empty (and therefore invalid) store.
func (b *Backend) Load(ctx context.Context) ([]*sop.Document, error) {
	rows, err := b.db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*sop.Document
	total := 0
	for rows.Next() {
		total++
		d, err := scanDocument(rows)
		if err != nil {
			b.logger.Warn("skipping unreadable document row", "error", err)
			continue
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	if len(docs) == 0 {
		if total > 0 {
			b.logger.Warn("all document rows unreadable, falling back to seeds")
		}
		return b.seed(ctx)
	}
	return docs, nil
}

// SaveDocument inserts or updates one document. New documents take the
// frontmost position, matching the store's prepend-on-create order.
func (b *Backend) SaveDocument(ctx context.Context, d *sop.Document) error {
	steps, err := json.Marshal(d.Steps)
	if err != nil {
		return fmt.Errorf("encoding steps: %w", err)
	}
	versions, err := json.Marshal(d.Versions)
	if err != nil {
		return fmt.Errorf("encoding versions: %w", err)
	}

	_, err = b.db.ExecContext(ctx, upsertDoc,
		d.ID.String(), d.RemoteID, d.Title, d.Summary,
		string(steps), string(versions), d.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.ID, err)
	}
	return nil
}

// SaveVersion persists the document carrying the new snapshot. Versions live
// inside the document row, so this is a full save.
func (b *Backend) SaveVersion(ctx context.Context, d *sop.Document, _ sop.Version) error {
	return b.SaveDocument(ctx, d)
}

// DeleteDocument removes the document row. Deleting a missing row is not an
// error.
func (b *Backend) DeleteDocument(ctx context.Context, d *sop.Document) error {
	if _, err := b.db.ExecContext(ctx, deleteDoc, d.ID.String()); err != nil {
		return fmt.Errorf("deleting document %s: %w", d.ID, err)
	}
	return nil
}

// seed writes the starter library and returns it.
func (b *Backend) seed(ctx context.Context) ([]*sop.Document, error) {
	docs := sop.SeedDocuments()
	// Save in reverse so prepend ordering leaves the first seed frontmost.
	for i := len(docs) - 1; i >= 0; i-- {
		if err := b.SaveDocument(ctx, docs[i]); err != nil {
			return nil, fmt.Errorf("seeding: %w", err)
		}
	}
	b.logger.Info("seeded document library", "count", len(docs))
	return docs, nil
}

func scanDocument(rows *sql.Rows) (*sop.Document, error) {
	var (
		d               sop.Document
		id              string
		steps, versions string
		updated         string
	)
	if err := rows.Scan(&id, &d.RemoteID, &d.Title, &d.Summary, &steps, &versions, &updated); err != nil {
		return nil, err
	}
	if err := d.ID.UnmarshalText([]byte(id)); err != nil {
		return nil, fmt.Errorf("document id %q: %w", id, err)
	}
	if err := json.Unmarshal([]byte(steps), &d.Steps); err != nil {
		return nil, fmt.Errorf("document %s steps: %w", id, err)
	}
	if err := json.Unmarshal([]byte(versions), &d.Versions); err != nil {
		return nil, fmt.Errorf("document %s versions: %w", id, err)
	}
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return nil, fmt.Errorf("document %s updated_at: %w", id, err)
	}
	d.UpdatedAt = t
	if d.Steps == nil {
		d.Steps = []sop.Step{}
	}
	if d.Versions == nil {
		d.Versions = []sop.Version{}
	}
	return &d, nil
}
