package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/regingest/internal/doctree"
)

// HTMLParser handles HTML files. <table> elements become native tables;
// headings and block text become lines of the single page.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		lines  []string
		tables []doctree.Table
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "footer", "header", "noscript":
				return
			case "table":
				if t := htmlTable(n); len(t.Rows) > 0 {
					tables = append(tables, t)
				}
				return
			case "h1", "h2", "h3", "h4", "h5", "h6", "p", "blockquote", "pre", "dt", "dd":
				if t := textContent(n); t != "" {
					lines = append(lines, t)
				}
				return
			case "li":
				if t := textContent(n); t != "" {
					lines = append(lines, "- "+t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	// Find <body> or use whole document.
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}

	return singlePage(filename, strings.Join(lines, "\n"), tables), nil
}

// htmlTable collects th/td text row by row, skipping nested tables.
func htmlTable(t *html.Node) doctree.Table {
	var out doctree.Table
	var rows func(*html.Node)
	rows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				rows(c)
			case "tr":
				var cells []string
				for td := c.FirstChild; td != nil; td = td.NextSibling {
					if td.Type == html.ElementNode && (td.Data == "td" || td.Data == "th") {
						cells = append(cells, textContent(td))
					}
				}
				if len(cells) > 0 {
					out.Rows = append(out.Rows, cells)
				}
			}
		}
	}
	rows(t)
	return out
}

// textContent joins descendant text with whitespace collapsed.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
