// Package structure turns extracted page text into an ordered list of
// sections: numbered headers, subsections, lists, body text and tables.
package structure

import (
	"errors"
	"regexp"
	"strings"

	"github.com/dgallion1/regingest/internal/doctree"
)

// ErrNoSections is returned when a document yields nothing to chunk.
var ErrNoSections = errors.New("no sections extracted")

var (
	headerRe     = regexp.MustCompile(`^(\d+(?:\.\d+)*)\s+([A-Z][A-Z ]*)$`)
	subsectionRe = regexp.MustCompile(`^(\d+\.\d+(?:\.\d+)*)\s+(.+)$`)
	bulletRe     = regexp.MustCompile(`^[•·▪▫◦‣⁃\-*]\s+\S`)
	numberedRe   = regexp.MustCompile(`^(?:\d+|[a-z]|[ivx]+)[.)]\s+\S`)
	noteRe       = regexp.MustCompile(`(?i)^(?:note|important|reminder|example)\b[:.]?`)
)

type lineKind int

const (
	linePlain lineKind = iota
	lineHeader
	lineSubsection
	lineListItem
	lineNote
)

// classifyLine applies the pattern precedence: header, subsection, list
// item, note marker, plain text.
func classifyLine(line string) (lineKind, []string) {
	if m := headerRe.FindStringSubmatch(line); m != nil {
		return lineHeader, m
	}
	if m := subsectionRe.FindStringSubmatch(line); m != nil {
		return lineSubsection, m
	}
	if IsListItem(line) {
		return lineListItem, nil
	}
	if noteRe.MatchString(line) {
		return lineNote, nil
	}
	return linePlain, nil
}

// IsListItem reports whether a line opens a bullet or numbered list item.
func IsListItem(line string) bool {
	line = strings.TrimSpace(line)
	return bulletRe.MatchString(line) || numberedRe.MatchString(line)
}

// builder accumulates the lines of the currently open section.
type builder struct {
	number string
	title  string
	kind   doctree.SectionKind
	page   int
	lines  []string
	attrs  map[string]string
}

func (b *builder) section() (doctree.Section, bool) {
	content := strings.TrimSpace(strings.Join(b.lines, "\n"))
	if content == "" && b.title == "" {
		return doctree.Section{}, false
	}
	return doctree.Section{
		Number:  b.number,
		Title:   b.title,
		Content: content,
		Pages:   []int{b.page},
		Kind:    b.kind,
		Attrs:   b.attrs,
	}, true
}

// Parse scans every page and returns the document's sections in reading
// order. Pages without text or tables contribute nothing; a document that
// produces no sections at all fails with ErrNoSections.
func Parse(pages []doctree.Page) ([]doctree.Section, error) {
	var sections []doctree.Section
	for _, page := range pages {
		sections = append(sections, parsePage(page)...)
	}
	sections = mergeContinued(sections)
	if len(sections) == 0 {
		return nil, ErrNoSections
	}
	return sections, nil
}

func parsePage(page doctree.Page) []doctree.Section {
	var out []doctree.Section
	var cur *builder

	flush := func() {
		if cur == nil {
			return
		}
		if s, ok := cur.section(); ok {
			out = append(out, s)
		}
		cur = nil
	}
	open := func() {
		if cur == nil {
			cur = &builder{kind: doctree.KindContent, page: page.Number}
		}
	}

	for _, raw := range strings.Split(page.Text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		kind, m := classifyLine(line)
		switch kind {
		case lineHeader:
			flush()
			cur = &builder{number: m[1], title: strings.TrimSpace(m[2]), kind: doctree.KindHeader, page: page.Number}
		case lineSubsection:
			flush()
			cur = &builder{number: m[1], title: strings.TrimSpace(m[2]), kind: doctree.KindContent, page: page.Number}
		case lineListItem:
			open()
			cur.kind = doctree.KindList
			cur.lines = append(cur.lines, line)
		case lineNote:
			open()
			if cur.attrs == nil {
				cur.attrs = map[string]string{}
			}
			cur.attrs["has_note"] = "true"
			cur.lines = append(cur.lines, line)
		default:
			open()
			cur.lines = append(cur.lines, line)
		}
	}
	flush()

	for i, t := range page.Tables {
		if s, ok := tableSection(t, i+1, page.Number); ok {
			out = append(out, s)
		}
	}
	return out
}

// mergeContinued joins adjacent sections that repeat the same number and
// title, which is how a section continued across a page break shows up.
func mergeContinued(sections []doctree.Section) []doctree.Section {
	if len(sections) < 2 {
		return sections
	}
	merged := []doctree.Section{sections[0]}
	for _, s := range sections[1:] {
		last := &merged[len(merged)-1]
		if s.Number == "" || s.Number != last.Number || s.Title != last.Title {
			merged = append(merged, s)
			continue
		}
		switch {
		case last.Content == "":
			last.Content = s.Content
		case s.Content != "":
			last.Content += "\n" + s.Content
		}
		last.Pages = doctree.UnionPages(last.Pages, s.Pages)
		if s.Kind == doctree.KindList {
			last.Kind = doctree.KindList
		}
		for k, v := range s.Attrs {
			if last.Attrs == nil {
				last.Attrs = map[string]string{}
			}
			last.Attrs[k] = v
		}
	}
	return merged
}

// Text renders sections back into one string, each prefixed with its number
// and title, for the classifier and metadata extractor.
func Text(sections []doctree.Section) string {
	var b strings.Builder
	for _, s := range sections {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		if head := Heading(s); head != "" {
			b.WriteString(head)
			b.WriteString("\n")
		}
		b.WriteString(s.Content)
	}
	return b.String()
}

// Heading returns "N Title" for numbered sections, the bare title otherwise.
func Heading(s doctree.Section) string {
	switch {
	case s.Number != "" && s.Title != "":
		return s.Number + " " + s.Title
	case s.Number != "":
		return s.Number
	default:
		return s.Title
	}
}
