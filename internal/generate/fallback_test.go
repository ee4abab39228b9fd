package generate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ultrasop/ultrasop/internal/sop"
)

func TestFallbackFromNotes_NumberedList(t *testing.T) {
	notes := "Title: Weekly Report\n1) Export data\n2) Build slides\n3) Send email"
	d := FallbackFromNotes(notes, "")

	if d.Title != "Weekly Report" {
		t.Errorf("Title = %q, want %q", d.Title, "Weekly Report")
	}
	want := []string{"Export data", "Build slides", "Send email"}
	got := sop.StepTitles(d.Steps)
	if len(got) != 3 {
		t.Fatalf("steps = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFallbackFromNotes_BulletMarkers(t *testing.T) {
	notes := "Deploys\n- tag release\n* push image\n4. verify health"
	d := FallbackFromNotes(notes, "")

	if d.Title != "Deploys" {
		t.Errorf("Title = %q", d.Title)
	}
	got := sop.StepTitles(d.Steps)
	want := []string{"tag release", "push image", "verify health"}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("steps = %v, want %v", got, want)
	}
}

func TestFallbackFromNotes_OverrideTitleWins(t *testing.T) {
	d := FallbackFromNotes("Title: Ignored\n- a step", "Chosen Title")
	if d.Title != "Chosen Title" {
		t.Errorf("Title = %q", d.Title)
	}
}

func TestFallbackFromNotes_NoBulletsUsesDefaults(t *testing.T) {
	d := FallbackFromNotes("just some prose\nmore prose", "")
	got := sop.StepTitles(d.Steps)
	if len(got) != 3 || got[0] != "Plan the work" {
		t.Errorf("steps = %v, want default scaffold", got)
	}
}

func TestFallbackFromNotes_EmptyNotes(t *testing.T) {
	d := FallbackFromNotes("   \n  \n", "")
	if d.Title != sop.DefaultTitle {
		t.Errorf("Title = %q, want %q", d.Title, sop.DefaultTitle)
	}
	if len(d.Steps) != 3 {
		t.Errorf("steps = %v", sop.StepTitles(d.Steps))
	}
}

func TestFallbackFromNotes_SummaryFromProse(t *testing.T) {
	notes := "How we onboard\nfirst prose line\nsecond prose line\nthird prose line\nfourth prose line\n- a step"
	d := FallbackFromNotes(notes, "")

	if !strings.Contains(d.Summary, "first prose line") || strings.Contains(d.Summary, "fourth") {
		t.Errorf("summary should use the first three prose lines, got %q", d.Summary)
	}
	if strings.Contains(d.Summary, "How we onboard") {
		t.Error("the title line should not appear in the summary")
	}
}

func TestFallbackFromNotes_SummaryCapped(t *testing.T) {
	long := strings.Repeat("x", 300)
	d := FallbackFromNotes("Title: T\n"+long, "")
	if len(d.Summary) > fallbackSummaryLimit {
		t.Errorf("summary length = %d, want <= %d", len(d.Summary), fallbackSummaryLimit)
	}
}

func TestFallbackFromNotes_SummaryCapOnRuneBoundary(t *testing.T) {
	notes := "Title: T\n" + strings.Repeat("é", 150) + "\n" + strings.Repeat("ü", 150)
	d := FallbackFromNotes(notes, "")

	if !utf8.ValidString(d.Summary) {
		t.Error("summary cut mid-rune")
	}
	if got := utf8.RuneCountInString(d.Summary); got != fallbackSummaryLimit {
		t.Errorf("summary runes = %d, want %d", got, fallbackSummaryLimit)
	}
}

func TestFallbackFromNotes_CRLF(t *testing.T) {
	d := FallbackFromNotes("Title: T\r\n- step one\r\n- step two\r\n", "")
	got := sop.StepTitles(d.Steps)
	if len(got) != 2 || got[0] != "step one" {
		t.Errorf("steps = %v", got)
	}
}
