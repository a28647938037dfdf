package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/regingest/internal/doctree"
)

// DOCXParser handles .docx files. Paragraphs become lines of a single page;
// body tables become native tables.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "regingest-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var (
		lines  []string
		tables []doctree.Table
	)
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			if t := docxParagraphText(it); t != "" {
				if docxIsListItem(it) {
					t = "- " + t
				}
				lines = append(lines, t)
			}
		case *docx.Table:
			if t := docxTable(it); len(t.Rows) > 0 {
				tables = append(tables, t)
			}
		}
	}
	return singlePage(filename, strings.Join(lines, "\n"), tables), nil
}

func docxTable(t *docx.Table) doctree.Table {
	var out doctree.Table
	for _, row := range t.TableRows {
		if row == nil {
			continue
		}
		var cells []string
		for _, cell := range row.TableCells {
			if cell == nil {
				continue
			}
			var parts []string
			for _, para := range cell.Paragraphs {
				if s := docxParagraphText(para); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if len(cells) > 0 {
			out.Rows = append(out.Rows, cells)
		}
	}
	return out
}

// docxIsListItem reports list-styled paragraphs.
func docxIsListItem(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(para.Properties.Style.Val)
	return strings.Contains(style, "list") || strings.Contains(style, "bullet")
}

func docxParagraphText(para *docx.Paragraph) string {
	if para == nil {
		return ""
	}
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
