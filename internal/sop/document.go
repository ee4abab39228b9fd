package sop

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is substituted for an empty document title at render and
// export time. The stored title stays empty until the user types one.
const DefaultTitle = "Untitled SOP"

// Sentinel errors for document operations.
var (
	// ErrVersionNotFound indicates the requested version number does not
	// exist on the document.
	ErrVersionNotFound = errors.New("version not found")

	// ErrNoPreviousVersion indicates a diff was requested for the oldest
	// snapshot, which has nothing to compare against.
	ErrNoPreviousVersion = errors.New("no previous version to compare")
)

// Document is one standard operating procedure: a title, a summary and an
// ordered list of steps, plus its append-only version history.
type Document struct {
	ID       uuid.UUID `json:"id"`
	RemoteID string    `json:"remoteId,omitempty"` // row id in the remote store; empty until first sync
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Steps    []Step    `json:"steps"`
	Versions []Version `json:"versions"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Version is an immutable snapshot of a document at a point in time. Steps
// are flattened to titles only; structured metadata is intentionally not
// preserved.
type Version struct {
	ID        uuid.UUID `json:"id"`
	N         int       `json:"n"`
	CreatedAt time.Time `json:"createdAt"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Notes     string    `json:"notes,omitempty"`
	Steps     []string  `json:"steps"`
}

// NewDocument creates an empty document with a fresh id.
func NewDocument() *Document {
	return &Document{
		ID:        uuid.New(),
		Steps:     []Step{},
		Versions:  []Version{},
		UpdatedAt: time.Now(),
	}
}

// Touch refreshes the modification timestamp. Every mutating edit calls it.
func (d *Document) Touch() {
	d.UpdatedAt = time.Now()
}

// DisplayTitle returns the title, or DefaultTitle when empty.
func (d *Document) DisplayTitle() string {
	if d.Title == "" {
		return DefaultTitle
	}
	return d.Title
}

// NextVersionN returns 1 + the maximum existing version number, or 1 when no
// versions exist. Deleting a version never causes renumbering, so the max is
// scanned rather than derived from the slice length.
func (d *Document) NextVersionN() int {
	maxN := 0
	for _, v := range d.Versions {
		if v.N > maxN {
			maxN = v.N
		}
	}
	return maxN + 1
}

// SnapshotVersion appends a new version capturing the current title, summary
// and flattened step titles. The snapshot is immutable once created.
func (d *Document) SnapshotVersion(notes string) Version {
	v := Version{
		ID:        uuid.New(),
		N:         d.NextVersionN(),
		CreatedAt: time.Now(),
		Title:     d.Title,
		Summary:   d.Summary,
		Notes:     notes,
		Steps:     StepTitles(d.Steps),
	}
	d.Versions = append(d.Versions, v)
	d.Touch()
	return v
}

// FindVersion returns the version with the given number.
func (d *Document) FindVersion(n int) (Version, error) {
	for _, v := range d.Versions {
		if v.N == n {
			return v, nil
		}
	}
	return Version{}, ErrVersionNotFound
}

// DeleteVersion removes a version by number. Sibling versions keep their
// numbers. Deleting a missing version is reported, not fatal.
func (d *Document) DeleteVersion(n int) error {
	for i, v := range d.Versions {
		if v.N == n {
			d.Versions = append(d.Versions[:i], d.Versions[i+1:]...)
			d.Touch()
			return nil
		}
	}
	return ErrVersionNotFound
}

// Restore replaces the document's title, summary and steps with the contents
// of the given version. Snapshot steps are titles only, so restored steps
// come back in plain form.
func (d *Document) Restore(n int) error {
	v, err := d.FindVersion(n)
	if err != nil {
		return err
	}
	d.Title = v.Title
	d.Summary = v.Summary
	d.Steps = make([]Step, len(v.Steps))
	for i, t := range v.Steps {
		d.Steps[i] = PlainStep(t)
	}
	d.Touch()
	return nil
}

// Clear wipes the title, summary and steps. Version history is preserved:
// snapshots outlive edits to their parent, and clearing is just another edit.
func (d *Document) Clear() {
	d.Title = ""
	d.Summary = ""
	d.Steps = []Step{}
	d.Touch()
}

// Duplicate returns a deep copy with a fresh id, a "Copy of" title, no
// version history and no remote correlation.
func (d *Document) Duplicate() *Document {
	steps := make([]Step, len(d.Steps))
	for i, st := range d.Steps {
		steps[i] = copyStep(st)
	}
	return &Document{
		ID:        uuid.New(),
		Title:     "Copy of " + d.DisplayTitle(),
		Summary:   d.Summary,
		Steps:     steps,
		Versions:  []Version{},
		UpdatedAt: time.Now(),
	}
}

// MoveStep swaps the step at index i with its neighbor in the given
// direction (-1 up, +1 down). Out-of-range moves are no-ops.
func (d *Document) MoveStep(i, dir int) {
	j := i + dir
	if i < 0 || j < 0 || i >= len(d.Steps) || j >= len(d.Steps) {
		return
	}
	d.Steps[i], d.Steps[j] = d.Steps[j], d.Steps[i]
	d.Touch()
}

// RemoveStep deletes the step at index i. Out-of-range indexes are no-ops.
func (d *Document) RemoveStep(i int) {
	if i < 0 || i >= len(d.Steps) {
		return
	}
	d.Steps = append(d.Steps[:i], d.Steps[i+1:]...)
	d.Touch()
}

// Clone returns a deep copy preserving identity, history and remote
// correlation. Used by the store to hand out snapshots that callers can
// read without racing concurrent mutations.
func (d *Document) Clone() *Document {
	cp := *d
	cp.Steps = make([]Step, len(d.Steps))
	for i, st := range d.Steps {
		cp.Steps[i] = copyStep(st)
	}
	cp.Versions = make([]Version, len(d.Versions))
	for i, v := range d.Versions {
		v.Steps = append([]string(nil), v.Steps...)
		cp.Versions[i] = v
	}
	return &cp
}

func copyStep(s Step) Step {
	if s.DurationMin != nil {
		v := *s.DurationMin
		s.DurationMin = &v
	}
	s.Checklist = append([]string(nil), s.Checklist...)
	s.Prerequisites = append([]string(nil), s.Prerequisites...)
	s.AcceptanceCriteria = append([]string(nil), s.AcceptanceCriteria...)
	s.Tools = append([]string(nil), s.Tools...)
	s.References = append([]string(nil), s.References...)
	s.Risks = append([]string(nil), s.Risks...)
	return s
}
