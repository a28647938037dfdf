package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/regingest/internal/doctree"
)

// CSVParser handles CSV files. The whole file becomes one native table on
// one page; the first record is the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return &doctree.Document{Filename: filename}, nil
	}
	return singlePage(filename, "", []doctree.Table{{Rows: records}}), nil
}
