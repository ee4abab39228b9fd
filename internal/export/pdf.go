// Package export renders documents to PDF. The layout is a single-column
// A4 page: a colored product band, the title and summary, then the numbered
// steps with their structured detail, and a deduplicated reference list at
// the end. Page breaks never split a text line; the footer appears on every
// page.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/ultrasop/ultrasop/internal/sop"
)

// Layout constants, in points.
const (
	pageMargin = 56.0
	lineHeight = 16.0
	bandHeight = 36.0
)

// Brand color for the header band.
var bandColor = [3]int{255, 122, 26}

// Options configures PDF rendering.
type Options struct {
	// ProductName appears in the header band and footer.
	ProductName string
	// Now supplies the generation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// ToPDF renders the document to w.
func ToPDF(d *sop.Document, w io.Writer, opts Options) error {
	if opts.ProductName == "" {
		opts.ProductName = "UltraSOP"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.AliasNbPages("{nb}")

	stamp := opts.Now().Format("2006-01-02 15:04")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin + 24)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 12, tr(fmt.Sprintf("Generated by %s — %s", opts.ProductName, stamp)), "", 0, "L", false, 0, "")
		pdf.SetX(-pageMargin - 60)
		pdf.CellFormat(60, 12, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	drawBand(pdf, tr, opts.ProductName)

	contentW, _ := pdf.GetPageSize()
	contentW -= 2 * pageMargin

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(contentW, 24, tr(d.DisplayTitle()), "", "L", false)
	pdf.Ln(4)

	if d.Summary != "" {
		pdf.SetFont("Helvetica", "", 12)
		pdf.SetTextColor(70, 70, 70)
		pdf.MultiCell(contentW, lineHeight, tr(d.Summary), "", "L", false)
		pdf.Ln(8)
	}

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(contentW, 20, "Steps", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	refs := newRefList()
	for i, st := range d.Steps {
		drawStep(pdf, tr, contentW, i+1, st)
		refs.add(st.References)
	}

	if len(refs.ordered) > 0 {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.SetTextColor(20, 20, 20)
		pdf.CellFormat(contentW, 20, "References", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(70, 70, 70)
		for i, r := range refs.ordered {
			pdf.MultiCell(contentW, 14, tr(fmt.Sprintf("%d. %s", i+1, r)), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return nil
}

func drawBand(pdf *fpdf.Fpdf, tr func(string) string, product string) {
	pageW, _ := pdf.GetPageSize()
	pdf.SetFillColor(bandColor[0], bandColor[1], bandColor[2])
	pdf.Rect(0, 0, pageW, bandHeight, "F")
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetXY(pageMargin, 0)
	pdf.CellFormat(0, bandHeight, tr(product), "", 0, "L", false, 0, "")
	pdf.SetXY(pageMargin, bandHeight+20)
}

func drawStep(pdf *fpdf.Fpdf, tr func(string) string, w float64, n int, st sop.Step) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(w, lineHeight, tr(fmt.Sprintf("Step %d: %s", n, st.Title)), "", "L", false)

	body := st.Longform
	if body == "" {
		body = st.Details
	}
	if body != "" {
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(60, 60, 60)
		pdf.MultiCell(w, lineHeight, tr(body), "", "L", false)
	}

	drawList(pdf, tr, w, "Checklist", st.Checklist)
	drawList(pdf, tr, w, "Prerequisites", st.Prerequisites)
	drawList(pdf, tr, w, "Acceptance criteria", st.AcceptanceCriteria)

	if meta := stepMeta(st); meta != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(110, 110, 110)
		pdf.MultiCell(w, 14, tr(meta), "", "L", false)
	}
	if len(st.Risks) > 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.SetTextColor(160, 60, 30)
		pdf.MultiCell(w, 14, tr("Risks: "+strings.Join(st.Risks, "; ")), "", "L", false)
	}
	pdf.Ln(6)
}

func drawList(pdf *fpdf.Fpdf, tr func(string) string, w float64, label string, items []string) {
	if len(items) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(w, 14, label, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(70, 70, 70)
	for _, it := range items {
		pdf.MultiCell(w, 14, tr("• "+it), "", "L", false)
	}
}

// stepMeta formats owner, duration and tools on one line.
func stepMeta(st sop.Step) string {
	var parts []string
	if st.OwnerRole != "" {
		parts = append(parts, "Owner: "+st.OwnerRole)
	}
	if st.DurationMin != nil {
		parts = append(parts, fmt.Sprintf("Duration: %d min", *st.DurationMin))
	}
	if len(st.Tools) > 0 {
		parts = append(parts, "Tools: "+strings.Join(st.Tools, ", "))
	}
	return strings.Join(parts, "   ")
}

// refList collects references across steps, keeping first-seen order and
// dropping duplicates.
type refList struct {
	seen    map[string]struct{}
	ordered []string
}

func newRefList() *refList {
	return &refList{seen: make(map[string]struct{})}
}

func (r *refList) add(refs []string) {
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, ok := r.seen[ref]; ok {
			continue
		}
		r.seen[ref] = struct{}{}
		r.ordered = append(r.ordered, ref)
	}
}
