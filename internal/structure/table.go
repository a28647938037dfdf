package structure

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/regingest/internal/doctree"
)

var (
	percentRe = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)
	amountRe  = regexp.MustCompile(`\$\s*\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)
)

// GridSeparator is the cell text of the row that follows a table header.
const GridSeparator = "---"

// FormatGrid renders a table as a pipe grid: header row, separator row, then
// data rows padded or truncated to the header's column count. It returns
// false when the table has no usable header.
func FormatGrid(t doctree.Table) (string, bool) {
	if len(t.Rows) == 0 {
		return "", false
	}
	header := cleanRow(t.Rows[0])
	cols := len(header)
	if cols == 0 || strings.Join(header, "") == "" {
		return "", false
	}

	sep := make([]string, cols)
	for i := range sep {
		sep[i] = GridSeparator
	}

	lines := []string{gridLine(header), gridLine(sep)}
	for _, row := range t.Rows[1:] {
		cells := cleanRow(row)
		if strings.Join(cells, "") == "" {
			continue
		}
		lines = append(lines, gridLine(fitRow(cells, cols)))
	}
	return strings.Join(lines, "\n"), true
}

// IsTaxRateGrid reports whether table text mentions both a percentage and a
// currency amount.
func IsTaxRateGrid(text string) bool {
	return percentRe.MatchString(text) && amountRe.MatchString(text)
}

// IsSeparatorLine reports whether a grid line is the header separator.
func IsSeparatorLine(line string) bool {
	cells := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if strings.TrimSpace(c) != GridSeparator {
			return false
		}
	}
	return true
}

func tableSection(t doctree.Table, idx, page int) (doctree.Section, bool) {
	grid, ok := FormatGrid(t)
	if !ok {
		return doctree.Section{}, false
	}
	kind := doctree.KindTable
	if IsTaxRateGrid(grid) {
		kind = doctree.KindTaxRateTable
	}
	header := cleanRow(t.Rows[0])
	return doctree.Section{
		Title:   fmt.Sprintf("Table %d (Page %d)", idx, page),
		Content: grid,
		Pages:   []int{page},
		Kind:    kind,
		Attrs: map[string]string{
			"is_table":      "true",
			"table_headers": strings.Join(header, " | "),
			"row_count":     strconv.Itoa(len(t.Rows) - 1),
		},
	}, true
}

func gridLine(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

func cleanRow(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.Join(strings.Fields(strings.ReplaceAll(c, "|", "/")), " ")
	}
	return out
}

func fitRow(cells []string, cols int) []string {
	if len(cells) >= cols {
		return cells[:cols]
	}
	out := make([]string, cols)
	copy(out, cells)
	return out
}
