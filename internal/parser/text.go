package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/regingest/internal/doctree"
)

// TextParser handles plain text files. Form feeds separate pages.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	return &doctree.Document{
		Filename: filename,
		Pages:    pagesFromText(string(data)),
	}, nil
}
