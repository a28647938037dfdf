package chunker

import (
	"regexp"
	"strings"

	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/structure"
)

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	TargetSize int // Size running text is packed up to.
	Overlap    int // Maximum injected context carried from the previous chunk.
	MaxSize    int // Largest table, list or section body emitted whole.
	MinSize    int // Trailing sentence fragments smaller than this are folded back.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetSize: 1000,
		Overlap:    200,
		MaxSize:    3000,
		MinSize:    100,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.TargetSize <= 0 {
		c.TargetSize = d.TargetSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.MaxSize <= 0 {
		c.MaxSize = d.MaxSize
	}
	if c.MaxSize < c.TargetSize {
		c.MaxSize = c.TargetSize
	}
	if c.MinSize < 0 {
		c.MinSize = 0
	}
	return c
}

// Chunker splits sections into retrieval-sized chunks. Tables and lists are
// only ever cut between rows or items.
type Chunker struct {
	cfg Config
}

// New returns a Chunker; zero or invalid sizes fall back to defaults.
func New(cfg Config) *Chunker {
	return &Chunker{cfg: cfg.normalized()}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config { return c.cfg }

const (
	contextOpen  = "[Context: "
	contextClose = "]\n\n"
)

var taxRateRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)

// piece is a chunk body before context injection and indexing.
type piece struct {
	text     string
	sections []doctree.Section
}

// Chunk turns a document's sections into chunks for sourceFile.
func (c *Chunker) Chunk(sourceFile string, sections []doctree.Section) []doctree.Chunk {
	var pieces []piece
	var acc piece

	flush := func() {
		if strings.TrimSpace(acc.text) != "" {
			pieces = append(pieces, acc)
		}
		acc = piece{}
	}

	for _, s := range sections {
		body := sectionText(s)
		if strings.TrimSpace(body) == "" {
			continue
		}

		switch {
		case s.Kind.IsTabular():
			flush()
			for _, t := range c.splitTable(s, body) {
				pieces = append(pieces, piece{text: t, sections: []doctree.Section{s}})
			}
			continue
		case s.Kind == doctree.KindList:
			flush()
			for _, t := range c.splitList(s, body) {
				pieces = append(pieces, piece{text: t, sections: []doctree.Section{s}})
			}
			continue
		case s.Kind == doctree.KindHeader:
			flush()
		}

		if len(body) > c.cfg.MaxSize {
			flush()
			for _, t := range c.splitBySentences(body) {
				pieces = append(pieces, piece{text: t, sections: []doctree.Section{s}})
			}
			continue
		}

		if acc.text != "" && len(acc.text)+2+len(body) > c.cfg.TargetSize {
			flush()
		}
		if acc.text != "" {
			acc.text += "\n\n"
		}
		acc.text += body
		acc.sections = append(acc.sections, s)
	}
	flush()

	chunks := make([]doctree.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = newChunk(sourceFile, i, p)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i-1].HasTable {
			continue
		}
		if ctx := trailingContext(chunks[i-1].Text, c.cfg.Overlap); ctx != "" {
			chunks[i].ContextPrefix = contextOpen + ctx + contextClose
		}
	}
	return chunks
}

func newChunk(sourceFile string, index int, p piece) doctree.Chunk {
	ch := doctree.Chunk{
		Text:       p.text,
		SourceFile: sourceFile,
		Index:      index,
		Kind:       doctree.ChunkText,
		HasTaxRate: taxRateRe.MatchString(p.text),
	}

	var pages []int
	for i, s := range p.sections {
		pages = doctree.UnionPages(pages, s.Pages)
		if ch.SectionTitle == "" && ch.SectionNumber == "" {
			ch.SectionNumber, ch.SectionTitle = s.Number, s.Title
		}
		switch {
		case s.Kind.IsTabular():
			ch.HasTable = true
		case s.Kind == doctree.KindList:
			ch.HasList = true
		case s.Kind == doctree.KindHeader && i == 0:
			ch.Kind = doctree.ChunkSection
		}
	}
	switch {
	case ch.HasTable:
		ch.Kind = doctree.ChunkTable
	case ch.HasList && len(p.sections) == 1:
		ch.Kind = doctree.ChunkList
	}
	if len(pages) > 0 {
		ch.PageStart, ch.PageEnd = pages[0], pages[len(pages)-1]
	}
	return ch
}

// sectionText is the section's heading line followed by its content.
func sectionText(s doctree.Section) string {
	head := structure.Heading(s)
	switch {
	case head == "":
		return s.Content
	case s.Content == "":
		return head
	default:
		return head + "\n" + s.Content
	}
}

// splitTable emits the table whole when it fits MaxSize. Otherwise rows are
// grouped up to TargetSize and every group repeats the heading, header row
// and separator so each piece stands on its own.
func (c *Chunker) splitTable(s doctree.Section, body string) []string {
	if len(body) <= c.cfg.MaxSize {
		return []string{body}
	}

	lines := strings.Split(s.Content, "\n")
	var preamble []string
	if head := structure.Heading(s); head != "" {
		preamble = append(preamble, head)
	}
	rows := lines
	if len(lines) >= 2 && structure.IsSeparatorLine(lines[1]) {
		preamble = append(preamble, lines[0], lines[1])
		rows = lines[2:]
	} else if len(lines) > 0 {
		preamble = append(preamble, lines[0])
		rows = lines[1:]
	}
	return packUnits(strings.Join(preamble, "\n"), rows, c.cfg.TargetSize)
}

// splitList groups list items, each item with its continuation lines, up
// to TargetSize.
func (c *Chunker) splitList(s doctree.Section, body string) []string {
	if len(body) <= c.cfg.MaxSize {
		return []string{body}
	}

	var items []string
	var lead []string
	for _, line := range strings.Split(s.Content, "\n") {
		switch {
		case structure.IsListItem(line):
			items = append(items, line)
		case len(items) == 0:
			lead = append(lead, line)
		default:
			items[len(items)-1] += "\n" + line
		}
	}

	preamble := structure.Heading(s)
	if len(lead) > 0 {
		// Text ahead of the first item is packed as if it were an item.
		items = append([]string{strings.Join(lead, "\n")}, items...)
	}
	return packUnits(preamble, items, c.cfg.TargetSize)
}

// packUnits greedily packs whole units under a preamble. A unit that does
// not fit with the preamble still gets a piece of its own; units are never
// cut.
func packUnits(preamble string, units []string, target int) []string {
	var out []string
	var cur strings.Builder
	count := 0

	start := func() {
		cur.Reset()
		count = 0
		cur.WriteString(preamble)
	}
	start()

	for _, u := range units {
		sep := 0
		if cur.Len() > 0 {
			sep = 1
		}
		if count > 0 && cur.Len()+sep+len(u) > target {
			out = append(out, cur.String())
			start()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(u)
		count++
	}
	if count > 0 {
		out = append(out, cur.String())
	}
	return out
}

// splitBySentences breaks an oversized body on sentence boundaries and
// repacks the sentences up to TargetSize.
func (c *Chunker) splitBySentences(text string) []string {
	var units []string
	for _, sent := range splitSentences(text) {
		if len(sent) > c.cfg.MaxSize {
			units = append(units, splitWords(sent, c.cfg.TargetSize)...)
			continue
		}
		units = append(units, sent)
	}

	var result []string
	var current strings.Builder
	for _, u := range units {
		if current.Len() > 0 && current.Len()+1+len(u) > c.cfg.TargetSize {
			result = append(result, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(u)
	}
	if current.Len() > 0 {
		last := current.String()
		n := len(result)
		if n > 0 && len(last) < c.cfg.MinSize && len(result[n-1])+1+len(last) <= c.cfg.MaxSize {
			result[n-1] += " " + last
		} else {
			result = append(result, last)
		}
	}
	return result
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// splitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// splitWords is the last resort for a "sentence" with no terminal
// punctuation: cut on whitespace near the target size.
func splitWords(text string, target int) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+1+len(w) > target {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// trailingContext returns the longest run of whole trailing sentences of
// text that fits in limit characters, whitespace collapsed.
func trailingContext(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	sentences := splitSentences(strings.Join(strings.Fields(text), " "))
	var picked []string
	size := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := len(sentences[i])
		if len(picked) > 0 {
			n++
		}
		if size+n > limit {
			break
		}
		picked = append([]string{sentences[i]}, picked...)
		size += n
	}
	return strings.Join(picked, " ")
}
