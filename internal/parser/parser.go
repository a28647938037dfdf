// Package parser reads source files into doctree Documents: page text plus
// any tables the format carries natively.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/regingest/internal/doctree"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Loader reads files from disk.
type Loader struct {
	FallbackPdftotext bool
}

// Load reads and parses the file at path. The Document carries the source
// size, modification time and byte hash.
func (l *Loader) Load(ctx context.Context, path string) (*doctree.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	if pdf, ok := p.(*PDFParser); ok {
		pdf.FallbackPdftotext = l.FallbackPdftotext
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	name := filepath.Base(path)
	doc, err := p.Parse(bytes.NewReader(data), name)
	if err != nil {
		return nil, err
	}
	doc.Filename = name
	doc.Path = path
	doc.Size = int64(len(data))
	doc.ModTime = info.ModTime()
	doc.Hash = doctree.HashBytes(data)
	return doc, nil
}

// Discover lists supported files under dir in lexical order. Hidden files
// and directories are ignored; subdirectories are walked only if recursive.
func Discover(dir string, recursive bool) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		if IsSupportedExtension(d.Name()) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(out)
	return out, nil
}

// singlePage wraps text and tables as a one-page Document.
func singlePage(filename, text string, tables []doctree.Table) *doctree.Document {
	return &doctree.Document{
		Filename: filename,
		Pages:    []doctree.Page{{Number: 1, Text: text, Tables: tables}},
	}
}

// pagesFromText splits on form feeds. Page numbers follow the source even
// when a page is blank.
func pagesFromText(text string) []doctree.Page {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var pages []doctree.Page
	for i, p := range strings.Split(text, "\f") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, doctree.Page{Number: i + 1, Text: strings.TrimSpace(p)})
	}
	return pages
}
