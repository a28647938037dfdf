package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/regingest/internal/doctree"
)

func TestMarkdownParser_LinesAndTables(t *testing.T) {
	input := `# INCOME TAX GUIDE

Intro text.

## 2.1 Rates

- Resident individuals
- Non-residents

| Income | Rate |
| --- | --- |
| First $20,000 | 0% |
| Next $10,000 | 2% |

---

Closing note.
`
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(input), "doc.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}

	want := strings.Join([]string{
		"INCOME TAX GUIDE",
		"Intro text.",
		"2.1 Rates",
		"- Resident individuals",
		"- Non-residents",
		"Closing note.",
	}, "\n")
	if doc.Pages[0].Text != want {
		t.Errorf("expected text:\n%s\ngot:\n%s", want, doc.Pages[0].Text)
	}

	tables := doc.Pages[0].Tables
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	rows := tables[0].Rows
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows including header, got %d", len(rows))
	}
	if rows[0][0] != "Income" || rows[0][1] != "Rate" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[2][0] != "Next $10,000" || rows[2][1] != "2%" {
		t.Errorf("unexpected row %v", rows[2])
	}
}

func TestMarkdownParser_NoContent(t *testing.T) {
	p := &MarkdownParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Text != "" || len(doc.Pages[0].Tables) != 0 {
		t.Errorf("expected one empty page, got %+v", doc.Pages)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "x")
	writeFile(t, filepath.Join(dir, "a.txt"), "x")
	writeFile(t, filepath.Join(dir, "notes.xls"), "x")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "x")
	writeFile(t, filepath.Join(dir, "sub", "c.md"), "x")
	writeFile(t, filepath.Join(dir, ".git", "d.txt"), "x")

	flat, err := Discover(dir, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFlat := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.pdf")}
	if strings.Join(flat, ",") != strings.Join(wantFlat, ",") {
		t.Errorf("expected %v, got %v", wantFlat, flat)
	}

	deep, err := Discover(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deep) != 3 || deep[2] != filepath.Join(dir, "sub", "c.md") {
		t.Errorf("expected recursive discovery to add sub/c.md, got %v", deep)
	}

	if _, err := Discover(filepath.Join(dir, "missing"), false); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "circular.txt")
	writeFile(t, path, "hello world")

	l := &Loader{}
	doc, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Filename != "circular.txt" || doc.Path != path {
		t.Errorf("unexpected identity %q %q", doc.Filename, doc.Path)
	}
	if doc.Size != 11 {
		t.Errorf("expected size 11, got %d", doc.Size)
	}
	if doc.Hash != doctree.HashBytes([]byte("hello world")) {
		t.Errorf("unexpected hash %q", doc.Hash)
	}
	if doc.ModTime.IsZero() {
		t.Error("expected a modification time")
	}

	if _, err := l.Load(context.Background(), filepath.Join(dir, "x.xls")); err == nil {
		t.Error("expected an error for an unsupported extension")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, path); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
