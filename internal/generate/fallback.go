package generate

import (
	"regexp"
	"strings"

	"github.com/ultrasop/ultrasop/internal/sop"
)

var (
	titlePrefixRe = regexp.MustCompile(`(?i)^title\s*:\s*`)
	bulletRe      = regexp.MustCompile(`^(\d+[.)]\s+|[-*]\s+)`)
)

// defaultFallbackSteps stand in when the notes contain no recognizable
// bullet or numbered lines.
var defaultFallbackSteps = []string{
	"Plan the work",
	"Perform the work",
	"Review & finalize",
}

const fallbackSummaryLimit = 240

// FallbackFromNotes derives a document from raw notes without calling the
// model. Numbered and bulleted lines become steps; a "Title:" line (or the
// first line) becomes the title; the first few prose lines become the
// summary. The result always passes through sanitization.
func FallbackFromNotes(notes, overrideTitle string) *sop.Document {
	var lines []string
	for _, l := range strings.Split(notes, "\n") {
		l = strings.TrimSpace(strings.TrimSuffix(l, "\r"))
		if l != "" {
			lines = append(lines, l)
		}
	}

	title := strings.TrimSpace(overrideTitle)
	titleLine := ""
	if title == "" {
		for _, l := range lines {
			if titlePrefixRe.MatchString(l) {
				titleLine = l
				title = titlePrefixRe.ReplaceAllString(l, "")
				break
			}
		}
	}
	if title == "" && len(lines) > 0 {
		titleLine = lines[0]
		title = lines[0]
	}

	var stepTitles, prose []string
	for _, l := range lines {
		if bulletRe.MatchString(l) {
			stepTitles = append(stepTitles, bulletRe.ReplaceAllString(l, ""))
			continue
		}
		if l != titleLine && len(prose) < 3 {
			prose = append(prose, l)
		}
	}
	if len(stepTitles) == 0 {
		stepTitles = defaultFallbackSteps
	}

	summary := strings.Join(prose, " — ")
	if r := []rune(summary); len(r) > fallbackSummaryLimit {
		summary = string(r[:fallbackSummaryLimit])
	}

	d := sop.NewDocument()
	d.Title = title
	d.Summary = summary
	d.Steps = make([]sop.Step, len(stepTitles))
	for i, t := range stepTitles {
		d.Steps[i] = sop.PlainStep(t)
	}
	sop.Sanitize(d)
	return d
}
