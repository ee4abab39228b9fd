package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(filepath.Join(t.TempDir(), "sop.db"), log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestLoad_EmptyDatabaseSeeds(t *testing.T) {
	b := openTestBackend(t)

	docs, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("fresh database should yield the seed library, got %d docs", len(docs))
	}
	if docs[0].Title != "Weekly Blog Publishing" {
		t.Errorf("first seed = %q", docs[0].Title)
	}

	// The seeds were persisted, so a second load returns the same set.
	again, err := b.Load(context.Background())
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if len(again) != 3 || again[0].ID != docs[0].ID {
		t.Error("seeding should be written through, not regenerated per load")
	}
}

func TestSaveDocument_RoundTrip(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	if _, err := b.Load(ctx); err != nil {
		t.Fatal(err)
	}

	dur := 15
	d := sop.NewDocument()
	d.Title = "Deploy Service"
	d.Summary = "Ship to production safely."
	d.Steps = []sop.Step{
		sop.PlainStep("Tag the release"),
		{Title: "Run smoke tests", Details: "Hit /health on each node.", OwnerRole: "SRE", DurationMin: &dur, Checklist: []string{"all nodes green"}},
	}
	d.SnapshotVersion("initial")

	if err := b.SaveDocument(ctx, d); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	docs, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// New documents take the frontmost position.
	got := docs[0]
	if got.ID != d.ID || got.Title != d.Title {
		t.Fatalf("got %q (%s), want %q", got.Title, got.ID, d.Title)
	}
	if len(got.Steps) != 2 || !got.Steps[0].IsPlain() || got.Steps[1].OwnerRole != "SRE" {
		t.Errorf("steps did not round-trip: %+v", got.Steps)
	}
	if got.Steps[1].DurationMin == nil || *got.Steps[1].DurationMin != 15 {
		t.Error("duration did not round-trip")
	}
	if len(got.Versions) != 1 || got.Versions[0].N != 1 || got.Versions[0].Notes != "initial" {
		t.Errorf("versions did not round-trip: %+v", got.Versions)
	}
}

func TestSaveDocument_Update(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	d := sop.NewDocument()
	d.Title = "v1"
	if err := b.SaveDocument(ctx, d); err != nil {
		t.Fatal(err)
	}
	d.Title = "v2"
	if err := b.SaveDocument(ctx, d); err != nil {
		t.Fatal(err)
	}

	docs, err := b.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := 0
	for _, got := range docs {
		if got.ID == d.ID {
			found++
			if got.Title != "v2" {
				t.Errorf("Title = %q, want v2", got.Title)
			}
		}
	}
	if found != 1 {
		t.Errorf("document stored %d times, want upsert", found)
	}
}

func TestDeleteDocument(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	d := sop.NewDocument()
	d.Title = "doomed"
	if err := b.SaveDocument(ctx, d); err != nil {
		t.Fatal(err)
	}
	if err := b.DeleteDocument(ctx, d); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	// Idempotent.
	if err := b.DeleteDocument(ctx, d); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	docs, err := b.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, got := range docs {
		if got.ID == d.ID {
			t.Error("deleted document still present")
		}
	}
}

func TestLoad_CorruptRowsFallBackToSeeds(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO documents (id, remote_id, title, summary, steps, versions, updated_at, position)
		 VALUES ('not-a-uuid', '', 'broken', '', '{garbage', '[]', 'never', 0)`)
	if err != nil {
		t.Fatal(err)
	}

	docs, err := b.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("unreadable state should fall back to seeds, got %d docs", len(docs))
	}
}
