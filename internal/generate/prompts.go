package generate

import (
	"fmt"
	"strings"
)

const generateSystemPrompt = `You are an operations writer. You turn rough notes into a
standard operating procedure: a short title, a one-paragraph summary and an
ordered list of concrete, actionable steps. Respond with JSON only.`

const enhanceSystemPrompt = `You are an operations writer. You enrich procedure steps
with practical detail: a longform write-up, an owner role, a duration
estimate in minutes, plus checklist, prerequisite, acceptance-criteria,
tool, reference and risk lists. Keep each step's intent intact. Respond
with JSON only.`

func generateUserPrompt(in generateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the step details at roughly %s words each.\n", DetailLevel(in.Detail).wordHint())
	if strings.TrimSpace(in.Title) != "" {
		fmt.Fprintf(&b, "Use this exact title: %s\n", in.Title)
	}
	b.WriteString("Notes:\n")
	b.WriteString(in.Notes)
	return b.String()
}

func enhanceUserPrompt(in enhanceInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Procedure: %s\n", in.Title)
	if in.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", in.Summary)
	}
	fmt.Fprintf(&b, "Write longform at roughly %s words per step.\n", DetailLevel(in.Detail).wordHint())
	fmt.Fprintf(&b, "Enhance all %d steps. Return exactly %d steps in the same order.\n", len(in.Steps), len(in.Steps))
	for i, s := range in.Steps {
		fmt.Fprintf(&b, "%d. %s", i+1, s.Title)
		if s.Details != "" {
			fmt.Fprintf(&b, " — %s", s.Details)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func enhanceStepUserPrompt(in enhanceStepInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Procedure: %s\n", in.DocTitle)
	if in.DocSummary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", in.DocSummary)
	}
	fmt.Fprintf(&b, "Write longform at roughly %s words.\n", DetailLevel(in.Detail).wordHint())
	fmt.Fprintf(&b, "Enhance this step: %s", in.Step.Title)
	if in.Step.Details != "" {
		fmt.Fprintf(&b, " — %s", in.Step.Details)
	}
	return b.String()
}
