package sop

import (
	"encoding/json"
	"fmt"
)

// Step is one instruction unit within a document. The zero value is an empty
// plain step.
//
// On the wire a step is either a bare JSON string (the minimal form) or a
// structured object. Readers must treat a plain string identically to a
// structured step whose only populated field is Title.
type Step struct {
	Title       string
	Details     string
	OwnerRole   string
	DurationMin *int // minutes; nil = unset, never negative

	// Enrichment fields, populated only by the generation gateway.
	Longform           string
	Checklist          []string
	Prerequisites      []string
	AcceptanceCriteria []string
	Tools              []string
	References         []string
	Risks              []string
}

// PlainStep returns a minimal step carrying only a title.
func PlainStep(title string) Step {
	return Step{Title: title}
}

// IsPlain reports whether the step carries no structured data beyond its
// title. Plain steps marshal as a bare string.
func (s Step) IsPlain() bool {
	return s.Details == "" &&
		s.OwnerRole == "" &&
		s.DurationMin == nil &&
		s.Longform == "" &&
		len(s.Checklist) == 0 &&
		len(s.Prerequisites) == 0 &&
		len(s.AcceptanceCriteria) == 0 &&
		len(s.Tools) == 0 &&
		len(s.References) == 0 &&
		len(s.Risks) == 0
}

// Promote returns the step in structured form: list fields are initialized
// to empty slices so serialized output declares them as sequences, never
// null. Title is preserved exactly.
func (s Step) Promote() Step {
	if s.Checklist == nil {
		s.Checklist = []string{}
	}
	if s.Prerequisites == nil {
		s.Prerequisites = []string{}
	}
	if s.AcceptanceCriteria == nil {
		s.AcceptanceCriteria = []string{}
	}
	if s.Tools == nil {
		s.Tools = []string{}
	}
	if s.References == nil {
		s.References = []string{}
	}
	if s.Risks == nil {
		s.Risks = []string{}
	}
	return s
}

// stepWire is the structured JSON shape of a step. List fields are always
// declared so readers see empty sequences, never null or a missing key.
type stepWire struct {
	Title              string   `json:"title"`
	Details            string   `json:"details,omitempty"`
	OwnerRole          string   `json:"ownerRole,omitempty"`
	DurationMin        *int     `json:"durationMin,omitempty"`
	Longform           string   `json:"longform,omitempty"`
	Checklist          []string `json:"checklist"`
	Prerequisites      []string `json:"prerequisites"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	Tools              []string `json:"tools"`
	References         []string `json:"references"`
	Risks              []string `json:"risks"`
}

// MarshalJSON emits a bare string for plain steps and the structured object
// otherwise. The step is promoted first so the object form always carries
// its list fields as arrays.
func (s Step) MarshalJSON() ([]byte, error) {
	if s.IsPlain() {
		return json.Marshal(s.Title)
	}
	return json.Marshal(stepWire(s.Promote()))
}

// UnmarshalJSON accepts either a bare string or a structured object.
func (s *Step) UnmarshalJSON(data []byte) error {
	var title string
	if err := json.Unmarshal(data, &title); err == nil {
		*s = Step{Title: title}
		return nil
	}

	var w stepWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("step must be a string or an object: %w", err)
	}
	*s = Step(w)
	if s.DurationMin != nil && *s.DurationMin < 0 {
		s.DurationMin = nil
	}
	return nil
}

// StepTitles flattens steps to their titles, the shape stored in a version
// snapshot.
func StepTitles(steps []Step) []string {
	titles := make([]string, len(steps))
	for i, st := range steps {
		titles[i] = st.Title
	}
	return titles
}
