package sop

// ChangeKind classifies one entry in a version diff.
type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
)

// Change is one reported difference between two version snapshots.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	Title string     `json:"title"`
}

// Diff compares the flattened step titles of two snapshots by set
// membership. A title present in cur but not prev is Added; present in prev
// but not cur is Removed. Comparison is exact string equality only, so a
// reworded step always yields one Removed and one Added, never a "changed"
// entry, and duplicate titles are collapsed to a presence test. Added
// entries are reported before Removed entries.
func Diff(prev, cur Version) []Change {
	prevSet := titleSet(prev.Steps)
	curSet := titleSet(cur.Steps)

	var changes []Change
	for _, t := range cur.Steps {
		if _, ok := prevSet[t]; !ok {
			changes = append(changes, Change{Kind: Added, Title: t})
			prevSet[t] = struct{}{} // report each distinct title once
		}
	}
	for _, t := range prev.Steps {
		if _, ok := curSet[t]; !ok {
			changes = append(changes, Change{Kind: Removed, Title: t})
			curSet[t] = struct{}{}
		}
	}
	return changes
}

// DiffAgainstPrevious diffs version n against its immediate predecessor in
// the document's snapshot order. The oldest snapshot has no predecessor and
// reports ErrNoPreviousVersion.
func (d *Document) DiffAgainstPrevious(n int) ([]Change, error) {
	idx := -1
	for i, v := range d.Versions {
		if v.N == n {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrVersionNotFound
	}
	if idx == 0 {
		return nil, ErrNoPreviousVersion
	}
	return Diff(d.Versions[idx-1], d.Versions[idx]), nil
}

func titleSet(titles []string) map[string]struct{} {
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	return set
}
