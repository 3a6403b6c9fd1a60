// Package chunker splits syllabus text into sections and packs them into a
// prompt budget.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultTargetSize = 1200
	DefaultMaxSize    = 2000

	// CharsPerToken is the rough size of one model token.
	CharsPerToken = 4

	// minExcerpt is the smallest remainder worth filling with a partial
	// section.
	minExcerpt = 200

	// TruncationMarker is appended when Fit drops text.
	TruncationMarker = "\n\n[... remaining syllabus text omitted ...]"
)

// Options configures splitting.
type Options struct {
	TargetSize int
	MaxSize    int
}

// DefaultOptions returns default splitting options.
func DefaultOptions() Options {
	return Options{TargetSize: DefaultTargetSize, MaxSize: DefaultMaxSize}
}

// Section is a span of the source text, usually one unit or chapter.
type Section struct {
	Heading   string
	Text      string
	StartLine int
	EndLine   int
}

// headingRe matches the lines syllabi use to open a unit: markdown headings,
// "Unit 3", "Chapter IV", "Module 2:", "Week 5 -" and "1." / "2.1" numbering.
var headingRe = regexp.MustCompile(`^(#{1,6}\s+\S|(?i:unit|chapter|module|week|part|section|lecture)\s+(?i:[0-9]+|[ivxlc]+)\b|[0-9]+(\.[0-9]+)*[.)]?\s+[A-Z])`)

// IsHeading reports whether line opens a new section.
func IsHeading(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" || len(t) > 120 {
		return false
	}
	return headingRe.MatchString(t)
}

// Split breaks text into sections on heading lines, then merges short
// neighbours toward TargetSize and breaks anything above MaxSize on line
// boundaries.
func Split(text string, opts Options) []Section {
	if opts.TargetSize <= 0 || opts.MaxSize < opts.TargetSize {
		opts = DefaultOptions()
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	var out []Section
	for _, s := range merge(byHeading(text), opts.TargetSize) {
		if len(s.Text) > opts.MaxSize {
			out = append(out, breakLines(s, opts.TargetSize)...)
			continue
		}
		out = append(out, s)
	}
	return out
}

func byHeading(text string) []Section {
	lines := strings.Split(text, "\n")
	var sections []Section
	cur := Section{StartLine: 1}
	var body []string

	flush := func(end int) {
		t := strings.TrimSpace(strings.Join(body, "\n"))
		if t != "" {
			cur.Text = t
			cur.EndLine = end
			sections = append(sections, cur)
		}
		body = nil
	}

	for i, line := range lines {
		if IsHeading(line) && len(body) > 0 {
			flush(i)
			cur = Section{StartLine: i + 1}
		}
		if cur.Heading == "" && IsHeading(line) {
			cur.Heading = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		}
		body = append(body, line)
	}
	flush(len(lines))
	return sections
}

// merge joins a section into its predecessor while the result stays within
// target. A heading always starts a new section unless the previous one is
// a bare heading.
func merge(sections []Section, target int) []Section {
	var out []Section
	for _, s := range sections {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			bare := prev.Heading != "" && strings.Count(prev.Text, "\n") == 0
			if (s.Heading == "" || bare) && len(prev.Text)+2+len(s.Text) <= target {
				prev.Text += "\n\n" + s.Text
				prev.EndLine = s.EndLine
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

func breakLines(s Section, target int) []Section {
	lines := strings.Split(s.Text, "\n")
	var out []Section
	var cur []string
	start, size := s.StartLine, 0

	emit := func(end int) {
		t := strings.TrimSpace(strings.Join(cur, "\n"))
		if t != "" {
			part := Section{Text: t, StartLine: start, EndLine: end}
			if len(out) == 0 {
				part.Heading = s.Heading
			}
			out = append(out, part)
		}
		cur, size = nil, 0
	}

	for i, line := range lines {
		if size+len(line) > target && len(cur) > 0 {
			emit(s.StartLine + i - 1)
			start = s.StartLine + i
		}
		cur = append(cur, line)
		size += len(line) + 1
	}
	emit(s.StartLine + len(lines) - 1)
	return out
}

// Packed is the result of Fit.
type Packed struct {
	Text      string `json:"text"`
	Budget    int    `json:"budget"`
	Used      int    `json:"used"`
	Sections  int    `json:"sections"`
	Truncated bool   `json:"truncated"`
}

// Fit returns as much of text as fits in budget tokens, in document order.
// Whole sections are taken while they fit; the next one is excerpted if
// enough room remains. budget <= 0 means unlimited.
func Fit(text string, budget int) Packed {
	text = Normalize(text)
	if budget <= 0 || len(text) <= budget*CharsPerToken {
		p := Packed{Text: text, Budget: budget, Used: tokens(len(text))}
		if text != "" {
			p.Sections = 1
		}
		return p
	}

	limit := budget*CharsPerToken - len(TruncationMarker)
	var b strings.Builder
	p := Packed{Budget: budget, Truncated: true}
	for _, s := range Split(text, DefaultOptions()) {
		sep := 0
		if b.Len() > 0 {
			sep = 2
		}
		if b.Len()+sep+len(s.Text) <= limit {
			if sep > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(s.Text)
			p.Sections++
			continue
		}
		if remaining := limit - b.Len() - sep; remaining >= minExcerpt {
			if sep > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(excerpt(s.Text, remaining))
			p.Sections++
		}
		break
	}
	b.WriteString(TruncationMarker)
	p.Text = b.String()
	p.Used = tokens(len(p.Text))
	return p
}

// excerpt cuts s to at most n bytes, preferring a word boundary.
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	if i := strings.LastIndexAny(cut, " \n\t"); i > n/2 {
		cut = cut[:i]
	}
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return strings.TrimSpace(cut)
}

func tokens(chars int) int {
	return (chars + CharsPerToken - 1) / CharsPerToken
}

var (
	blankRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns = regexp.MustCompile(`[ \t\f\v]+`)
)

// Normalize squeezes runs of spaces and blank lines but keeps line
// structure, which Split uses to find headings.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(l, " "))
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
