package doctree

import (
	"crypto/sha256"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Document is the upstream extraction of one source file: its raw page text
// and any tables the reader recognised natively.
type Document struct {
	Filename string    // Base name, the version-store key
	Path     string    // Full path, the cache key (falls back to Filename)
	Size     int64     // Source size in bytes
	ModTime  time.Time // Source modification time
	Hash     string    // SHA-256 of the source bytes, if the reader had them
	Pages    []Page
}

// Page is one page (or page-like division) of a document.
type Page struct {
	Number int // 1-based
	Text   string
	Tables []Table
}

// Table is a native table. Rows[0] is the header row.
type Table struct {
	Rows [][]string
}

// Key returns the cache key for the document.
func (d *Document) Key() string {
	if d.Path != "" {
		return d.Path
	}
	return d.Filename
}

// Text joins all page text with blank lines.
func (d *Document) Text() string {
	var b strings.Builder
	for _, p := range d.Pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

// ContentHash returns the source byte hash when known, otherwise a hash over
// the extracted page text and table cells.
func (d *Document) ContentHash() string {
	if d.Hash != "" {
		return d.Hash
	}
	h := sha256.New()
	for _, p := range d.Pages {
		fmt.Fprintf(h, "\f%d\n%s", p.Number, p.Text)
		for _, t := range p.Tables {
			for _, row := range t.Rows {
				h.Write([]byte("\x1e" + strings.Join(row, "\x1f")))
			}
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// HashBytes computes SHA-256 of data and returns the hex string.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// ByteSize returns Size, or the extracted text length when Size is unknown.
func (d *Document) ByteSize() int64 {
	if d.Size > 0 {
		return d.Size
	}
	var n int64
	for _, p := range d.Pages {
		n += int64(len(p.Text))
	}
	return n
}

// SectionKind is the structural role of a Section.
type SectionKind string

const (
	KindHeader       SectionKind = "header"
	KindContent      SectionKind = "content"
	KindTable        SectionKind = "table"
	KindList         SectionKind = "list"
	KindTaxRateTable SectionKind = "tax_rate_table"
)

// IsTabular reports whether sections of this kind must be kept row-intact.
func (k SectionKind) IsTabular() bool {
	return k == KindTable || k == KindTaxRateTable
}

// Section is a structurally detected unit of a document.
type Section struct {
	Number  string // e.g. "2.1"; empty when the section is unnumbered
	Title   string
	Content string
	Pages   []int // ascending, unique
	Kind    SectionKind
	Attrs   map[string]string
}

// FirstPage returns the lowest page of the section, or 0.
func (s Section) FirstPage() int {
	if len(s.Pages) == 0 {
		return 0
	}
	return s.Pages[0]
}

// LastPage returns the highest page of the section, or 0.
func (s Section) LastPage() int {
	if len(s.Pages) == 0 {
		return 0
	}
	return s.Pages[len(s.Pages)-1]
}

// UnionPages merges two ascending page sets.
func UnionPages(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// ChunkKind describes what a chunk mostly holds.
type ChunkKind string

const (
	ChunkText    ChunkKind = "text"
	ChunkSection ChunkKind = "section"
	ChunkTable   ChunkKind = "table"
	ChunkList    ChunkKind = "list"
)

// Chunk is a sized text segment with provenance, ready for indexing.
type Chunk struct {
	Text          string
	SourceFile    string
	SectionNumber string
	SectionTitle  string
	PageStart     int
	PageEnd       int
	Kind          ChunkKind
	Index         int    // Sequence number within the document
	ContextPrefix string // Injected trailing context from the previous chunk
	HasTable      bool
	HasList       bool
	HasTaxRate    bool
}

// Content returns the text as indexed: context prefix followed by the body.
func (c Chunk) Content() string {
	return c.ContextPrefix + c.Text
}

var chunkNamespace = uuid.MustParse("6f1c5e3a-8d0b-4f7e-9a52-2b8c7d4e1f90")

// ID is a stable identifier derived from (SourceFile, Index), so pushing the
// same chunk twice addresses the same record.
func (c Chunk) ID() string {
	return uuid.NewSHA1(chunkNamespace, []byte(c.SourceFile+"#"+strconv.Itoa(c.Index))).String()
}
