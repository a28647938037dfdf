package parser

import (
	"strings"
	"testing"
)

func TestTextParser_FormFeedPages(t *testing.T) {
	input := "1 INTRODUCTION\nThis guide explains relief.\fPage two text.\r\nSecond line."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Filename != "notes.txt" {
		t.Errorf("expected filename %q, got %q", "notes.txt", doc.Filename)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Text != "1 INTRODUCTION\nThis guide explains relief." {
		t.Errorf("page 1: got %q", doc.Pages[0].Text)
	}
	if doc.Pages[1].Number != 2 || doc.Pages[1].Text != "Page two text.\nSecond line." {
		t.Errorf("page 2: got %d %q", doc.Pages[1].Number, doc.Pages[1].Text)
	}
}

func TestTextParser_BlankPageKeepsNumbering(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("one\f   \fthree"), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if doc.Pages[1].Number != 3 {
		t.Errorf("expected page number 3, got %d", doc.Pages[1].Number)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 0 {
		t.Errorf("expected 0 pages for empty input, got %d", len(doc.Pages))
	}
}

func TestCSVParser_SingleTable(t *testing.T) {
	input := "Income,Rate\nFirst $20000,0%\nNext $10000,2%\n"
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(input), "rates.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Tables) != 1 {
		t.Fatalf("expected one page with one table, got %+v", doc.Pages)
	}
	rows := doc.Pages[0].Tables[0].Rows
	if len(rows) != 3 || rows[0][0] != "Income" || rows[2][1] != "2%" {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestHTMLParser_TablesAndText(t *testing.T) {
	input := `<html><head><title>Guide</title><script>var x=1;</script></head><body>
<h2>2.1 Rates</h2>
<p>The  rates   below apply.</p>
<ul><li>Resident individuals</li><li>Non-residents</li></ul>
<table><thead><tr><th>Income</th><th>Rate</th></tr></thead>
<tbody><tr><td>First $20,000</td><td>0%</td></tr></tbody></table>
</body></html>`
	p := &HTMLParser{}
	doc, err := p.Parse(strings.NewReader(input), "guide.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	want := "2.1 Rates\nThe rates below apply.\n- Resident individuals\n- Non-residents"
	if doc.Pages[0].Text != want {
		t.Errorf("expected text %q, got %q", want, doc.Pages[0].Text)
	}
	tables := doc.Pages[0].Tables
	if len(tables) != 1 || len(tables[0].Rows) != 2 {
		t.Fatalf("expected one 2-row table, got %+v", tables)
	}
	if tables[0].Rows[1][0] != "First $20,000" {
		t.Errorf("unexpected cell %q", tables[0].Rows[1][0])
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.txt", false},
		{"a.MD", false},
		{"a.htm", false},
		{"a.docx", false},
		{"a.pdf", false},
		{"a.xls", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): err=%v, wantErr=%v", tt.name, err, tt.wantErr)
		}
		if IsSupportedExtension(tt.name) == tt.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tt.name)
		}
	}
}
