package versioning

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	familySplitRe = regexp.MustCompile(`[_\-\s]+`)
	versionTokRe  = regexp.MustCompile(`^(?:v\d+(?:\.\d+)*|rev\d+)$`)
	yearTokRe     = regexp.MustCompile(`^(?:ya)?\d{4}$`)
)

// Family derives the logical document name shared by successive editions:
// the lowercased stem with year and version tokens removed, joined by "_".
// "Income_Tax_Guide_2023.pdf" and "income-tax-guide v2.pdf" both map to
// "income_tax_guide". Family is idempotent.
func Family(filename string) string {
	base := filepath.Base(filename)
	stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))

	var kept []string
	for _, tok := range familySplitRe.Split(stem, -1) {
		if tok == "" || versionTokRe.MatchString(tok) {
			continue
		}
		for _, part := range strings.Split(tok, ".") {
			if part == "" || yearTokRe.MatchString(part) {
				continue
			}
			kept = append(kept, part)
		}
	}
	if len(kept) == 0 {
		return stem
	}
	return strings.Join(kept, "_")
}
