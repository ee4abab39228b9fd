package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/ultrasop/ultrasop/internal/log"
	"github.com/ultrasop/ultrasop/internal/sop"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memBackend records calls for assertions.
type memBackend struct {
	mu       sync.Mutex
	initial  []*sop.Document
	loadErr  error
	saveErr  error
	saves    []*sop.Document
	versions []sop.Version
	deletes  []uuid.UUID
}

func (b *memBackend) Load(ctx context.Context) ([]*sop.Document, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	out := make([]*sop.Document, len(b.initial))
	for i, d := range b.initial {
		out[i] = d.Clone()
	}
	return out, nil
}

func (b *memBackend) SaveDocument(ctx context.Context, d *sop.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves = append(b.saves, d.Clone())
	return nil
}

func (b *memBackend) SaveVersion(ctx context.Context, d *sop.Document, v sop.Version) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.versions = append(b.versions, v)
	return nil
}

func (b *memBackend) DeleteDocument(ctx context.Context, d *sop.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, d.ID)
	return nil
}

func (b *memBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saves)
}

func newTestStore(t *testing.T, b *memBackend) *Store {
	t.Helper()
	s, err := New(context.Background(), b, log.NewNop(), WithQuietPeriod(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestNew_EmptyBackendSynthesizesBlank(t *testing.T) {
	s := newTestStore(t, &memBackend{})

	docs := s.List()
	if len(docs) != 1 {
		t.Fatalf("store should never be empty, got %d docs", len(docs))
	}
	if s.Active().ID != docs[0].ID {
		t.Error("synthesized blank should be active")
	}
}

func TestNew_LoadError(t *testing.T) {
	b := &memBackend{loadErr: errors.New("boom")}
	if _, err := New(context.Background(), b, log.NewNop()); err == nil {
		t.Fatal("load failure should surface")
	}
}

func TestSetActive_Missing(t *testing.T) {
	s := newTestStore(t, &memBackend{})
	before := s.Active().ID

	err := s.SetActive(uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if s.Active().ID != before {
		t.Error("failed selection must not change the active document")
	}
}

func TestCreate_PrependsAndActivates(t *testing.T) {
	s := newTestStore(t, &memBackend{initial: sop.SeedDocuments()})

	d := s.Create("Incident Review")
	docs := s.List()
	if docs[0].ID != d.ID {
		t.Error("new document should be first in store order")
	}
	if s.Active().ID != d.ID {
		t.Error("new document should become active")
	}
}

func TestCreateFromTemplate(t *testing.T) {
	s := newTestStore(t, &memBackend{})

	d, err := s.CreateFromTemplate("bug_triage")
	if err != nil {
		t.Fatalf("CreateFromTemplate: %v", err)
	}
	if len(d.Steps) == 0 {
		t.Error("template instantiation should carry steps")
	}

	if _, err := s.CreateFromTemplate("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown template error = %v, want ErrNotFound", err)
	}
}

func TestUpdateActive_TouchesAndSchedulesSave(t *testing.T) {
	b := &memBackend{}
	s := newTestStore(t, b)
	old := s.Active().UpdatedAt

	got := s.UpdateActive(func(d *sop.Document) {
		d.Title = "Runbook"
	})
	if got.Title != "Runbook" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.UpdatedAt.Before(old) {
		t.Error("UpdateActive should refresh UpdatedAt")
	}

	s.Flush(context.Background())
	if b.saveCount() == 0 {
		t.Error("flush after update should hit the backend")
	}
}

func TestDebounce_CoalescesRapidEdits(t *testing.T) {
	b := &memBackend{}
	s := newTestStore(t, b)

	for i := 0; i < 10; i++ {
		s.UpdateActive(func(d *sop.Document) {
			d.Steps = append(d.Steps, sop.PlainStep("step"))
		})
	}

	// Wait out the quiet period; ten edits should produce one save (plus
	// the initial blank synthesis).
	deadline := time.After(500 * time.Millisecond)
	for b.saveCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("debounced save never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if n := b.saveCount(); n > 2 {
		t.Errorf("rapid edits produced %d saves, want coalescing", n)
	}

	b.mu.Lock()
	last := b.saves[len(b.saves)-1]
	b.mu.Unlock()
	if len(last.Steps) != 10 {
		t.Errorf("persisted snapshot has %d steps, want the final state (10)", len(last.Steps))
	}
}

func TestDelete_ReselectsFirstRemaining(t *testing.T) {
	seeds := sop.SeedDocuments()
	b := &memBackend{initial: seeds}
	s := newTestStore(t, b)

	docs := s.List()
	if err := s.SetActive(docs[1].ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := s.Delete(context.Background(), docs[1].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	remaining := s.List()
	if len(remaining) != len(seeds)-1 {
		t.Fatalf("len = %d", len(remaining))
	}
	if s.Active().ID != remaining[0].ID {
		t.Error("deleting the active document should select the first remaining one")
	}
}

func TestDelete_LastDocumentSynthesizesBlank(t *testing.T) {
	s := newTestStore(t, &memBackend{})
	only := s.Active()

	if err := s.Delete(context.Background(), only.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	docs := s.List()
	if len(docs) != 1 {
		t.Fatalf("store must never be empty, got %d", len(docs))
	}
	if docs[0].ID == only.ID {
		t.Error("the synthesized blank should be a new document")
	}
	if docs[0].Title != "" || len(docs[0].Steps) != 0 {
		t.Error("synthesized document should be blank")
	}
}

func TestDelete_Missing(t *testing.T) {
	s := newTestStore(t, &memBackend{})
	if err := s.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSaveVersion_PersistsImmediately(t *testing.T) {
	b := &memBackend{}
	s := newTestStore(t, b)
	s.UpdateActive(func(d *sop.Document) {
		d.Title = "Release"
		d.Steps = []sop.Step{sop.PlainStep("Tag"), sop.PlainStep("Ship")}
	})

	v, err := s.SaveVersion(context.Background(), "first cut")
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if v.N != 1 || v.Notes != "first cut" {
		t.Errorf("version = %+v", v)
	}

	b.mu.Lock()
	persisted := len(b.versions)
	b.mu.Unlock()
	if persisted != 1 {
		t.Errorf("backend saw %d versions, want 1 without waiting for debounce", persisted)
	}
	if len(s.Active().Versions) != 1 {
		t.Error("snapshot should be on the live document")
	}
}

func TestReload_FixesVanishedActive(t *testing.T) {
	seeds := sop.SeedDocuments()
	b := &memBackend{initial: seeds}
	s := newTestStore(t, b)

	extra := s.Create("Scratch") // active, not in backend
	b.mu.Lock()
	b.initial = seeds
	b.mu.Unlock()

	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if s.Active().ID == extra.ID {
		t.Error("vanished active document should fall back to first remaining")
	}
	if len(s.List()) != len(seeds) {
		t.Errorf("reload should replace the in-memory set")
	}
}

func TestReload_DropsQueuedSaves(t *testing.T) {
	b := &memBackend{initial: sop.SeedDocuments()}
	s, err := New(context.Background(), b, log.NewNop(), WithQuietPeriod(time.Hour))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })

	s.UpdateActive(func(d *sop.Document) {
		d.Title = "stale edit"
	})
	if err := s.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	s.Flush(context.Background())

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range b.saves {
		if d.Title == "stale edit" {
			t.Error("a save queued before the reload must not reach the backend")
		}
	}
}

func TestMutationsDoNotLeakThroughSnapshots(t *testing.T) {
	s := newTestStore(t, &memBackend{})
	s.UpdateActive(func(d *sop.Document) {
		d.Steps = []sop.Step{sop.PlainStep("A")}
	})

	snap := s.Active()
	snap.Steps[0].Title = "tampered"

	if s.Active().Steps[0].Title != "A" {
		t.Error("snapshot mutation leaked into the store")
	}
}
