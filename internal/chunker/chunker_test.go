package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_EmptyInput(t *testing.T) {
	if got := Split("  \n ", DefaultOptions()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSplit_ShortText(t *testing.T) {
	text := "Course overview.\nAssessment is by final exam."
	got := Split(text, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected 1 section, got %d", len(got))
	}
	if got[0].Text != text {
		t.Errorf("expected %q, got %q", text, got[0].Text)
	}
	if got[0].StartLine != 1 || got[0].EndLine != 2 {
		t.Errorf("expected lines 1-2, got %d-%d", got[0].StartLine, got[0].EndLine)
	}
}

func TestSplit_OnUnitHeadings(t *testing.T) {
	body := strings.Repeat("Topics covered in depth this week. ", 10)
	text := "Unit 1 Cells\n" + body + "\nUnit 2 Genetics\n" + body + "\nUnit 3 Ecology\n" + body

	got := Split(text, Options{TargetSize: 400, MaxSize: 800})
	if len(got) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(got))
	}
	want := []string{"Unit 1 Cells", "Unit 2 Genetics", "Unit 3 Ecology"}
	for i, s := range got {
		if s.Heading != want[i] {
			t.Errorf("section %d: heading %q, want %q", i, s.Heading, want[i])
		}
	}
	if got[1].StartLine != 3 {
		t.Errorf("expected second section to start on line 3, got %d", got[1].StartLine)
	}
}

func TestSplit_MergesBareHeading(t *testing.T) {
	text := "# Syllabus\n## Week 1\nIntro lecture."
	got := Split(text, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("expected heading-only sections to merge, got %d", len(got))
	}
	if got[0].Heading != "Syllabus" {
		t.Errorf("expected heading %q, got %q", "Syllabus", got[0].Heading)
	}
}

func TestSplit_RespectsMaxSize(t *testing.T) {
	opts := Options{TargetSize: 200, MaxSize: 300}
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "this is a line of text that is about sixty characters long")
	}
	got := Split(strings.Join(lines, "\n"), opts)
	if len(got) < 4 {
		t.Fatalf("expected at least 4 sections, got %d", len(got))
	}
	for i, s := range got {
		if len(s.Text) > opts.MaxSize {
			t.Errorf("section %d has %d chars, max %d", i, len(s.Text), opts.MaxSize)
		}
	}
}

func TestIsHeading(t *testing.T) {
	cases := map[string]bool{
		"# Overview":                true,
		"Unit 4: Thermodynamics":    true,
		"CHAPTER IV":                true,
		"2.1 Cell Structure":        true,
		"Week 10 - Review":          true,
		"2 hours of lab work":       false,
		"Partial derivatives":       false,
		"":                          false,
		"students should read ch 3": false,
	}
	for line, want := range cases {
		if got := IsHeading(line); got != want {
			t.Errorf("IsHeading(%q) = %v, want %v", line, got, want)
		}
	}
}

func TestFit_WithinBudget(t *testing.T) {
	p := Fit("short text", 100)
	if p.Truncated {
		t.Error("did not expect truncation")
	}
	if p.Text != "short text" {
		t.Errorf("got %q", p.Text)
	}
	if p.Used != 3 {
		t.Errorf("expected 3 tokens, got %d", p.Used)
	}
}

func TestFit_Unlimited(t *testing.T) {
	text := strings.Repeat("x", 10000)
	if p := Fit(text, 0); p.Truncated || len(p.Text) != 10000 {
		t.Errorf("expected untouched text, truncated=%v len=%d", p.Truncated, len(p.Text))
	}
}

func TestFit_PacksInOrder(t *testing.T) {
	body := strings.Repeat("word ", 200) // ~1000 chars
	text := "Unit 1 A\n" + body + "\nUnit 2 B\n" + body + "\nUnit 3 C\n" + body

	p := Fit(text, 600) // 2400 chars
	if !p.Truncated {
		t.Fatal("expected truncation")
	}
	if len(p.Text) > 600*CharsPerToken {
		t.Errorf("packed %d chars, budget %d", len(p.Text), 600*CharsPerToken)
	}
	if !strings.HasPrefix(p.Text, "Unit 1 A") {
		t.Errorf("expected document order, got prefix %q", p.Text[:20])
	}
	if !strings.Contains(p.Text, "Unit 2 B") {
		t.Error("expected second unit to fit")
	}
	if !strings.HasSuffix(p.Text, TruncationMarker) {
		t.Error("expected truncation marker")
	}
	if p.Used > p.Budget {
		t.Errorf("used %d > budget %d", p.Used, p.Budget)
	}
}

func TestExcerpt_ValidUTF8(t *testing.T) {
	s := strings.Repeat("é", 100)
	for n := 1; n < 50; n++ {
		if got := excerpt(s, n); !utf8.ValidString(got) {
			t.Fatalf("excerpt(%d) produced invalid UTF-8", n)
		}
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize("Unit 1   Cells\r\n\r\n\r\n\r\n  Mitosis\tand   meiosis  \n")
	if want := "Unit 1 Cells\n\nMitosis and meiosis"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFit_NormalizesWhitespace(t *testing.T) {
	p := Fit("Unit 1   Cells\r\n\r\n\r\nMitosis\n", 100)
	if p.Text != "Unit 1 Cells\n\nMitosis" {
		t.Errorf("got %q", p.Text)
	}
}
