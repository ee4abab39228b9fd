// Package postgres is the remote persistence backend. Documents are scoped
// to a user and correlated with their local counterparts through a
// server-assigned row id. Version numbers are assigned inside the insert
// statement so concurrent writers cannot mint duplicates.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
)

// Sentinel errors.
var (
	// ErrNoSession indicates a remote operation was attempted without an
	// authenticated user.
	ErrNoSession = errors.New("no authenticated session")
)

const pgUniqueViolation = "23505"

const (
	selectDocuments = `SELECT id, client_id, title, summary, steps, updated_at
FROM documents
WHERE user_id = $1
ORDER BY updated_at DESC`

	selectVersions = `SELECT v.id, v.document_id, v.n, v.title, v.summary, v.notes, v.steps, v.created_at
FROM document_versions v
JOIN documents d ON d.id = v.document_id
WHERE d.user_id = $1
ORDER BY v.document_id, v.n`

	upsertDocument = `INSERT INTO documents (client_id, user_id, title, summary, steps, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id, client_id) DO UPDATE SET
	title = EXCLUDED.title,
	summary = EXCLUDED.summary,
	steps = EXCLUDED.steps,
	updated_at = EXCLUDED.updated_at
RETURNING id`

	insertVersion = `INSERT INTO document_versions (document_id, n, title, summary, notes, steps, created_at)
SELECT $1, COALESCE(MAX(n), 0) + 1, $2, $3, $4, $5, $6
FROM document_versions
WHERE document_id = $1
RETURNING n`

	deleteDocument = `DELETE FROM documents WHERE id = $1 AND user_id = $2`
)

// querier abstracts pgxpool.Pool and pgx.Tx for testing.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Backend persists one user's documents to Postgres.
type Backend struct {
	db     querier
	userID string
	logger log.Logger
}

// New creates a Backend bound to the given user.
func New(pool *pgxpool.Pool, userID string, logger log.Logger) (*Backend, error) {
	if userID == "" {
		return nil, ErrNoSession
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Backend{db: pool, userID: userID, logger: logger}, nil
}

// Load reads the user's documents, newest first, with their version history
// attached.
func (b *Backend) Load(ctx context.Context) ([]*sop.Document, error) {
	rows, err := b.db.Query(ctx, selectDocuments, b.userID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []*sop.Document
	byRemoteID := make(map[string]*sop.Document)
	for rows.Next() {
		var (
			id      int64
			d       sop.Document
			steps   []byte
			updated time.Time
		)
		if err := rows.Scan(&id, &d.ID, &d.Title, &d.Summary, &steps, &updated); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if err := json.Unmarshal(steps, &d.Steps); err != nil {
			return nil, fmt.Errorf("decoding steps for document %d: %w", id, err)
		}
		if d.Steps == nil {
			d.Steps = []sop.Step{}
		}
		d.Versions = []sop.Version{}
		d.RemoteID = strconv.FormatInt(id, 10)
		d.UpdatedAt = updated
		docs = append(docs, &d)
		byRemoteID[d.RemoteID] = &d
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading documents: %w", err)
	}

	if err := b.loadVersions(ctx, byRemoteID); err != nil {
		return nil, err
	}
	return docs, nil
}

func (b *Backend) loadVersions(ctx context.Context, byRemoteID map[string]*sop.Document) error {
	if len(byRemoteID) == 0 {
		return nil
	}
	rows, err := b.db.Query(ctx, selectVersions, b.userID)
	if err != nil {
		return fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v     sop.Version
			docID int64
			steps []byte
		)
		if err := rows.Scan(&v.ID, &docID, &v.N, &v.Title, &v.Summary, &v.Notes, &steps, &v.CreatedAt); err != nil {
			return fmt.Errorf("scanning version: %w", err)
		}
		if err := json.Unmarshal(steps, &v.Steps); err != nil {
			return fmt.Errorf("decoding version %d steps: %w", v.N, err)
		}
		if v.Steps == nil {
			v.Steps = []string{}
		}
		if d, ok := byRemoteID[strconv.FormatInt(docID, 10)]; ok {
			d.Versions = append(d.Versions, v)
		}
	}
	return rows.Err()
}

// SaveDocument upserts the document and records the assigned row id on it.
// The (user_id, client_id) pair makes the upsert idempotent across retries.
func (b *Backend) SaveDocument(ctx context.Context, d *sop.Document) error {
	steps, err := json.Marshal(d.Steps)
	if err != nil {
		return fmt.Errorf("encoding steps: %w", err)
	}

	var id int64
	err = b.db.QueryRow(ctx, upsertDocument,
		d.ID, b.userID, d.Title, d.Summary, steps, d.UpdatedAt).Scan(&id)
	if err != nil {
		return fmt.Errorf("saving document %s: %w", d.ID, err)
	}
	d.RemoteID = strconv.FormatInt(id, 10)
	return nil
}

// SaveVersion persists one snapshot. The version number is assigned by the
// insert itself (max + 1 over the document's existing versions); two
// concurrent snapshots race on the unique (document_id, n) constraint and
// the loser retries once with a fresh number.
func (b *Backend) SaveVersion(ctx context.Context, d *sop.Document, v sop.Version) error {
	if d.RemoteID == "" {
		if err := b.SaveDocument(ctx, d); err != nil {
			return err
		}
	}
	docID, err := strconv.ParseInt(d.RemoteID, 10, 64)
	if err != nil {
		return fmt.Errorf("remote id %q: %w", d.RemoteID, err)
	}
	steps, err := json.Marshal(v.Steps)
	if err != nil {
		return fmt.Errorf("encoding version steps: %w", err)
	}

	for attempt := 0; ; attempt++ {
		var n int
		err = b.db.QueryRow(ctx, insertVersion,
			docID, v.Title, v.Summary, v.Notes, steps, v.CreatedAt).Scan(&n)
		if err == nil {
			if n != v.N {
				b.logger.Debug("version renumbered by server", "doc", d.ID, "local", v.N, "assigned", n)
			}
			return nil
		}
		var pgErr *pgconn.PgError
		if attempt == 0 && errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			continue
		}
		return fmt.Errorf("saving version for document %s: %w", d.ID, err)
	}
}

// DeleteDocument removes the document and, through the foreign key cascade,
// its versions. Documents that never synced have nothing to delete.
func (b *Backend) DeleteDocument(ctx context.Context, d *sop.Document) error {
	if d.RemoteID == "" {
		return nil
	}
	docID, err := strconv.ParseInt(d.RemoteID, 10, 64)
	if err != nil {
		return fmt.Errorf("remote id %q: %w", d.RemoteID, err)
	}
	if _, err := b.db.Exec(ctx, deleteDocument, docID, b.userID); err != nil {
		return fmt.Errorf("deleting document %s: %w", d.ID, err)
	}
	return nil
}
