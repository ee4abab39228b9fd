package sop

import "strings"

// Field length caps applied to generated content before it reaches the
// editor. User-typed content is not truncated; only gateway output is.
const (
	MaxTitleLen     = 200
	MaxSummaryLen   = 600
	MaxStepTitleLen = 300
	MaxDetailsLen   = 1200
	MaxOwnerRoleLen = 120
)

// Sanitize coerces a document into the canonical shape: title defaulted and
// capped, summary capped, steps passed through SanitizeSteps. Mandatory for
// every generation result regardless of whether it came from the upstream
// model or the local fallback.
func Sanitize(d *Document) {
	d.Title = truncate(strings.TrimSpace(d.Title), MaxTitleLen)
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	d.Summary = truncate(d.Summary, MaxSummaryLen)
	d.Steps = SanitizeSteps(d.Steps)
}

// SanitizeSteps normalizes each step: blank-titled steps are dropped, text
// fields are capped, durations are clamped to non-negative integers or
// cleared, and structured steps get empty (never nil) list fields.
func SanitizeSteps(steps []Step) []Step {
	out := make([]Step, 0, len(steps))
	for _, st := range steps {
		st, ok := SanitizeStep(st)
		if !ok {
			continue
		}
		out = append(out, st)
	}
	return out
}

// SanitizeStep normalizes a single step. ok is false when the title is blank
// after trimming, in which case the step should be discarded.
func SanitizeStep(st Step) (Step, bool) {
	st.Title = truncate(strings.TrimSpace(st.Title), MaxStepTitleLen)
	if st.Title == "" {
		return Step{}, false
	}
	st.Details = truncate(st.Details, MaxDetailsLen)
	st.OwnerRole = truncate(st.OwnerRole, MaxOwnerRoleLen)
	if st.DurationMin != nil && *st.DurationMin < 0 {
		st.DurationMin = nil
	}
	st.Checklist = cleanList(st.Checklist)
	st.Prerequisites = cleanList(st.Prerequisites)
	st.AcceptanceCriteria = cleanList(st.AcceptanceCriteria)
	st.Tools = cleanList(st.Tools)
	st.References = cleanList(st.References)
	st.Risks = cleanList(st.Risks)
	if !st.IsPlain() {
		st = st.Promote()
	}
	return st, true
}

// cleanList trims entries and drops blanks, preserving order. A nil input
// stays nil so plain steps stay plain.
func cleanList(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// truncate cuts s to at most n characters. The cap counts runes, not bytes,
// so multi-byte text is never cut mid-rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
