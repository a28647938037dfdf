package structure

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/regingest/internal/doctree"
)

func TestParse_HeaderSubsectionAndBody(t *testing.T) {
	pages := []doctree.Page{{
		Number: 1,
		Text: "1 INTRODUCTION\n" +
			"This guide explains the filing process.\n" +
			"1.1 Who should file\n" +
			"Every resident with income above the threshold.",
	}}
	sections, err := Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}

	if sections[0].Kind != doctree.KindHeader {
		t.Errorf("section 0: expected header kind, got %s", sections[0].Kind)
	}
	if sections[0].Number != "1" || sections[0].Title != "INTRODUCTION" {
		t.Errorf("section 0: got number %q title %q", sections[0].Number, sections[0].Title)
	}
	if sections[0].Content != "This guide explains the filing process." {
		t.Errorf("section 0: unexpected content %q", sections[0].Content)
	}

	if sections[1].Kind != doctree.KindContent {
		t.Errorf("section 1: expected content kind, got %s", sections[1].Kind)
	}
	if sections[1].Number != "1.1" || sections[1].Title != "Who should file" {
		t.Errorf("section 1: got number %q title %q", sections[1].Number, sections[1].Title)
	}
}

func TestParse_HeaderTakesPrecedenceOverSubsection(t *testing.T) {
	sections, err := Parse([]doctree.Page{{Number: 1, Text: "2.1 GENERAL RULES\nbody"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sections[0].Kind != doctree.KindHeader {
		t.Errorf("expected an all-caps numbered line to be a header, got %s", sections[0].Kind)
	}
}

func TestParse_BulletFlipsSectionToList(t *testing.T) {
	pages := []doctree.Page{{
		Number: 1,
		Text:   "3.2 Qualifying reliefs\nYou may claim:\n• Earned Income Relief\n• Spouse Relief\na) Parent Relief",
	}}
	sections, err := Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Kind != doctree.KindList {
		t.Errorf("expected list kind, got %s", sections[0].Kind)
	}
	if !strings.Contains(sections[0].Content, "a) Parent Relief") {
		t.Errorf("expected numbered item kept in content, got %q", sections[0].Content)
	}
}

func TestParse_NoteMarkerSetsAttr(t *testing.T) {
	sections, err := Parse([]doctree.Page{{Number: 1, Text: "Some text.\nNote: rates change yearly."}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sections[0].Attrs["has_note"] != "true" {
		t.Errorf("expected has_note attr, got %v", sections[0].Attrs)
	}
}

func TestParse_NativeTables(t *testing.T) {
	pages := []doctree.Page{{
		Number: 4,
		Text:   "5 RATES\nThe rates are below.",
		Tables: []doctree.Table{
			{Rows: [][]string{
				{"Chargeable Income", "Rate"},
				{"First $20,000", "0%"},
				{"Next $10,000", "2%", "extra"},
				{"Next $10,000"},
			}},
			{Rows: [][]string{{"Form", "Due"}, {"B1", "18 April"}}},
		},
	}}
	sections, err := Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}

	rates := sections[1]
	if rates.Kind != doctree.KindTaxRateTable {
		t.Errorf("expected tax rate table, got %s", rates.Kind)
	}
	if rates.Title != "Table 1 (Page 4)" {
		t.Errorf("unexpected title %q", rates.Title)
	}
	want := "| Chargeable Income | Rate |\n" +
		"| --- | --- |\n" +
		"| First $20,000 | 0% |\n" +
		"| Next $10,000 | 2% |\n" +
		"| Next $10,000 |  |"
	if rates.Content != want {
		t.Errorf("unexpected grid:\n%s\nwant:\n%s", rates.Content, want)
	}
	if rates.Attrs["is_table"] != "true" {
		t.Errorf("expected is_table attr")
	}

	if sections[2].Kind != doctree.KindTable {
		t.Errorf("expected plain table, got %s", sections[2].Kind)
	}
}

func TestParse_MergesSectionContinuedAcrossPages(t *testing.T) {
	pages := []doctree.Page{
		{Number: 1, Text: "2 FILING REQUIREMENTS\nPart one."},
		{Number: 2, Text: "2 FILING REQUIREMENTS\nPart two."},
		{Number: 3, Text: "3 PENALTIES\nLate filing."},
	}
	sections, err := Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections after merge, got %d", len(sections))
	}
	if sections[0].Content != "Part one.\nPart two." {
		t.Errorf("unexpected merged content %q", sections[0].Content)
	}
	if len(sections[0].Pages) != 2 || sections[0].Pages[0] != 1 || sections[0].Pages[1] != 2 {
		t.Errorf("expected pages [1 2], got %v", sections[0].Pages)
	}
}

func TestParse_UnnumberedSectionsAreNotMerged(t *testing.T) {
	pages := []doctree.Page{
		{Number: 1, Text: "loose text"},
		{Number: 2, Text: "more loose text"},
	}
	sections, err := Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 2 {
		t.Errorf("expected 2 sections, got %d", len(sections))
	}
}

func TestParse_EmptyPagesAreSkipped(t *testing.T) {
	pages := []doctree.Page{
		{Number: 1, Text: "   \n\n"},
		{Number: 2, Text: "1 SCOPE\nApplies to all."},
	}
	sections, err := Parse(pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sections) != 1 || sections[0].FirstPage() != 2 {
		t.Errorf("expected one section from page 2, got %+v", sections)
	}
}

func TestParse_NoSectionsIsError(t *testing.T) {
	_, err := Parse([]doctree.Page{{Number: 1, Text: ""}, {Number: 2}})
	if !errors.Is(err, ErrNoSections) {
		t.Errorf("expected ErrNoSections, got %v", err)
	}
}

func TestIsSeparatorLine(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"| --- | --- |", true},
		{"| a | --- |", false},
		{"plain text", false},
	}
	for _, tt := range tests {
		if got := IsSeparatorLine(tt.line); got != tt.want {
			t.Errorf("IsSeparatorLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestText_IncludesHeadings(t *testing.T) {
	got := Text([]doctree.Section{
		{Number: "1", Title: "SCOPE", Content: "All residents."},
		{Title: "Table 1 (Page 2)", Content: "| a | b |"},
	})
	want := "1 SCOPE\nAll residents.\n\nTable 1 (Page 2)\n| a | b |"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
