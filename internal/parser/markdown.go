package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/regingest/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark. GFM tables become
// native tables; headings, paragraphs and list items become lines of the
// single page.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	root := md.Parser().Parse(text.NewReader(src))

	var (
		lines  []string
		tables []doctree.Table
	)
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *extast.Table:
			if t := markdownTable(node, src); len(t.Rows) > 0 {
				tables = append(tables, t)
			}
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				if t := inlineText(item, src); t != "" {
					lines = append(lines, "- "+strings.ReplaceAll(t, "\n", " "))
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if t := blockLines(n, src); t != "" {
				lines = append(lines, t)
			}
		case *ast.ThematicBreak:
		default:
			if t := inlineText(n, src); t != "" {
				lines = append(lines, t)
			}
		}
	}
	return singlePage(filename, strings.Join(lines, "\n"), tables), nil
}

func markdownTable(t *extast.Table, src []byte) doctree.Table {
	var out doctree.Table
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		switch row.(type) {
		case *extast.TableHeader, *extast.TableRow:
		default:
			continue
		}
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		if len(cells) > 0 {
			out.Rows = append(out.Rows, cells)
		}
	}
	return out
}

// inlineText collects the inline text under n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return strings.TrimSpace(buf.String())
}
