// Package render projects documents into terminal views. All functions are
// pure: they take a snapshot and return a string, leaving layout decisions
// to the styles.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/google/uuid"

	"github.com/ultrasop/ultrasop/internal/sop"
)

type styles struct {
	title    lipgloss.Style
	active   lipgloss.Style
	dim      lipgloss.Style
	heading  lipgloss.Style
	stepNum  lipgloss.Style
	meta     lipgloss.Style
	risk     lipgloss.Style
	added    lipgloss.Style
	removed  lipgloss.Style
}

// Renderer formats documents for the terminal.
type Renderer struct {
	s styles
}

// New creates a Renderer with the default styles.
func New() *Renderer {
	return &Renderer{s: styles{
		title:   lipgloss.NewStyle().Bold(true),
		active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		heading: lipgloss.NewStyle().Bold(true).Underline(true),
		stepNum: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		meta:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		risk:    lipgloss.NewStyle().Foreground(lipgloss.Color("167")),
		added:   lipgloss.NewStyle().Foreground(lipgloss.Color("70")),
		removed: lipgloss.NewStyle().Foreground(lipgloss.Color("167")),
	}}
}

// ListView lists all documents, marking the active one.
func (r *Renderer) ListView(docs []*sop.Document, activeID uuid.UUID) string {
	var b strings.Builder
	for _, d := range docs {
		marker := "  "
		line := fmt.Sprintf("%s  (%d steps, %d versions)", d.DisplayTitle(), len(d.Steps), len(d.Versions))
		if d.ID == activeID {
			marker = "> "
			line = r.s.active.Render(line)
		} else {
			line = r.s.title.Render(d.DisplayTitle()) + r.s.dim.Render(fmt.Sprintf("  (%d steps, %d versions)", len(d.Steps), len(d.Versions)))
		}
		b.WriteString(marker)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// Preview renders the full document: title, summary, numbered steps and
// their structured detail.
func (r *Renderer) Preview(d *sop.Document) string {
	var b strings.Builder
	b.WriteString(r.s.title.Render(d.DisplayTitle()))
	b.WriteString("\n")
	if d.Summary != "" {
		b.WriteString(d.Summary)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(r.s.heading.Render("Steps"))
	b.WriteString("\n")

	for i, st := range d.Steps {
		b.WriteString(r.s.stepNum.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(" ")
		b.WriteString(st.Title)
		b.WriteString("\n")
		if st.Details != "" {
			b.WriteString(indent(st.Details))
		}
		for _, c := range st.Checklist {
			b.WriteString("   [ ] " + c + "\n")
		}
		if meta := stepMetaLine(st); meta != "" {
			b.WriteString("   " + r.s.meta.Render(meta) + "\n")
		}
		for _, risk := range st.Risks {
			b.WriteString("   " + r.s.risk.Render("! "+risk) + "\n")
		}
	}
	if len(d.Steps) == 0 {
		b.WriteString(r.s.dim.Render("(no steps yet)"))
		b.WriteString("\n")
	}
	return b.String()
}

// VersionHistory lists snapshots newest first.
func (r *Renderer) VersionHistory(d *sop.Document) string {
	if len(d.Versions) == 0 {
		return r.s.dim.Render("(no versions saved)") + "\n"
	}
	var b strings.Builder
	for i := len(d.Versions) - 1; i >= 0; i-- {
		v := d.Versions[i]
		b.WriteString(r.s.title.Render(fmt.Sprintf("v%d", v.N)))
		b.WriteString(r.s.dim.Render(fmt.Sprintf("  %s  %d steps", v.CreatedAt.Format("2006-01-02 15:04"), len(v.Steps))))
		if v.Notes != "" {
			b.WriteString("  " + v.Notes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// DiffView renders a version comparison: additions first, then removals.
func (r *Renderer) DiffView(changes []sop.Change) string {
	if len(changes) == 0 {
		return r.s.dim.Render("(no step changes)") + "\n"
	}
	var b strings.Builder
	for _, c := range changes {
		switch c.Kind {
		case sop.Added:
			b.WriteString(r.s.added.Render("+ " + c.Title))
		case sop.Removed:
			b.WriteString(r.s.removed.Render("- " + c.Title))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// JSONView renders the document as indented JSON, the shape used for
// interchange.
func (r *Renderer) JSONView(d *sop.Document) (string, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}
	return string(out) + "\n", nil
}

func stepMetaLine(st sop.Step) string {
	var parts []string
	if st.OwnerRole != "" {
		parts = append(parts, "owner: "+st.OwnerRole)
	}
	if st.DurationMin != nil {
		parts = append(parts, fmt.Sprintf("%d min", *st.DurationMin))
	}
	return strings.Join(parts, ", ")
}

func indent(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString("   ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
