// Package extract pulls document-level metadata out of plain text: titles,
// dates, years of assessment, version markers, rates, reliefs and legal
// references. Every sub-extraction is independent; a missing value is left
// empty and never reported as an error.
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	titleWindow       = 500
	publicationWindow = 1000
	updatedWindow     = 1000
	effectiveWindow   = 2000
	versionWindow     = 1000
	typeWindow        = 2000
	categoryWindow    = 3000

	maxRates      = 10
	maxReliefs    = 10
	maxSections   = 20
	maxReferences = 5
	maxRangeYears = 50
)

// Metadata describes one document. Empty strings and nil slices mean the
// value was not found.
type Metadata struct {
	Title              string   `json:"title"`
	DocumentType       string   `json:"document_type"`
	TaxCategory        string   `json:"tax_category"`
	Subcategory        string   `json:"subcategory"`
	YearsOfAssessment  []string `json:"years_of_assessment,omitempty"`
	PublicationDate    string   `json:"publication_date,omitempty"`
	LastUpdated        string   `json:"last_updated,omitempty"`
	EffectiveDate      string   `json:"effective_date,omitempty"`
	Version            string   `json:"version,omitempty"`
	Revision           string   `json:"revision,omitempty"`
	Supersedes         string   `json:"supersedes,omitempty"`
	Sections           []string `json:"sections,omitempty"`
	HasTables          bool     `json:"has_tables"`
	HasForms           bool     `json:"has_forms"`
	HasExamples        bool     `json:"has_examples"`
	TaxRatesMentioned  []string `json:"tax_rates_mentioned,omitempty"`
	ReliefsMentioned   []string `json:"reliefs_mentioned,omitempty"`
	ActReferences      []string `json:"act_references,omitempty"`
	CircularReferences []string `json:"circular_references,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`
	DocumentID         string   `json:"document_id,omitempty"`
}

// LatestYear returns the highest year of assessment, if any parse.
func (m Metadata) LatestYear() (int, bool) {
	best, ok := 0, false
	for _, y := range m.YearsOfAssessment {
		n, err := strconv.Atoi(y)
		if err != nil {
			continue
		}
		if !ok || n > best {
			best, ok = n, true
		}
	}
	return best, ok
}

// VersionDate is the date that identifies this edition: last updated,
// falling back to publication date.
func (m Metadata) VersionDate() string {
	if m.LastUpdated != "" {
		return m.LastUpdated
	}
	return m.PublicationDate
}

// Summary renders the metadata as a short human-readable block.
func (m Metadata) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n", m.Title)
	fmt.Fprintf(&b, "  Type: %s\n", m.DocumentType)
	fmt.Fprintf(&b, "  Category: %s", m.TaxCategory)
	if m.Subcategory != "" && m.Subcategory != "general" {
		fmt.Fprintf(&b, " (%s)", m.Subcategory)
	}
	b.WriteString("\n")
	if len(m.YearsOfAssessment) > 0 {
		fmt.Fprintf(&b, "  Year(s): %s\n", strings.Join(m.YearsOfAssessment, ", "))
	}
	if m.LastUpdated != "" {
		fmt.Fprintf(&b, "  Updated: %s\n", m.LastUpdated)
	}
	if m.Version != "" {
		fmt.Fprintf(&b, "  Version: %s\n", m.Version)
	}
	if len(m.Sections) > 0 {
		fmt.Fprintf(&b, "  Sections: %d\n", len(m.Sections))
	}
	if m.HasTables {
		b.WriteString("  Contains tables\n")
	}
	if len(m.TaxRatesMentioned) > 0 {
		rates := m.TaxRatesMentioned
		if len(rates) > 3 {
			rates = rates[:3]
		}
		fmt.Fprintf(&b, "  Rates: %s\n", strings.Join(rates, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

const fullDate = `(\d{1,2}\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})`

var (
	titleKeywords = []string{"IRAS", "TAX", "GST", "GUIDE", "CIRCULAR"}

	publishedRe = regexp.MustCompile(`(?i)\b(?:Published|Issued?|Dated?)[:\s]+` + fullDate)
	updatedRe   = regexp.MustCompile(`(?i)\b(?:Last\s+updated|Updated|Revised)[:\s]+` + fullDate)
	effectiveRe = regexp.MustCompile(`(?i)\b(?:With\s+effect\s+from|Effective(?:\s+from)?)[:\s]+` + fullDate)

	yaExplicitRe = regexp.MustCompile(`(?i)\b(?:Year\s+of\s+Assessment|YA)\s*(\d{4})\b`)
	yaRangeRe    = regexp.MustCompile(`(?i)\bYA\s*(\d{4})\s*(?:to|-)\s*(\d{4})\b`)
	yaBasisRe    = regexp.MustCompile(`(?i)\b(?:Basis|Tax)\s+Year\s*(\d{4})\b`)
	yearTokenRe  = regexp.MustCompile(`\d{4}`)

	versionRe    = regexp.MustCompile(`(?i)\bVersion\s*[:\s]*(\d+(?:\.\d+)*)`)
	revisionRe   = regexp.MustCompile(`(?i)\bRev(?:ision)?\.?\s*[:\s]*(\d+(?:\.\d+)*)`)
	supersedesRe = regexp.MustCompile(`(?i)\bSupersedes?\s*[:\s]*([^,\n]+)`)

	sectionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^[ \t]*(\d+(?:\.\d+)*)\.?[ \t]+([A-Z][^.!?\n]+)`),
		regexp.MustCompile(`(?m)^[ \t]*Part[ \t]+([IVX]+|\d+)[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(`(?m)^[ \t]*Chapter[ \t]+(\d+)[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(`(?m)^[ \t]*Appendix[ \t]+([A-Z\d]+)[:\s]+([^.!?\n]+)`),
		regexp.MustCompile(`(?m)^[ \t]*Annex[ \t]+([A-Z\d]+)[:\s]+([^.!?\n]+)`),
	}

	actRe      = regexp.MustCompile(`(?:Income Tax Act|Goods and Services Tax Act|GST Act|Property Tax Act|Stamp Duties Act|Estate Duty Act)(?:\s+\([^)]+\))?`)
	circularRe = regexp.MustCompile(`Circular\s+(?:No\.\s*)?([A-Z0-9][A-Z0-9/\-]*)`)

	tableRowRe = regexp.MustCompile(`\|.*\|`)
	formRe     = regexp.MustCompile(`Form [A-Z0-9]|Annex [A-Z]|Appendix [A-Z\d]`)
	exampleRe  = regexp.MustCompile(`(?i)Example \d+|Example:|For example`)

	rateRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*percent\b`),
	}
	reliefRe = regexp.MustCompile(`((?:[A-Z][A-Za-z'\-]*[ \t]+){1,4})(Relief|Deduction|Allowance|Rebate|Exemption)\b`)

	documentIDRe = regexp.MustCompile(`[A-Z]{2,}\d+[A-Z]*`)

	taxKeywords = []string{
		"deduction", "exemption", "relief", "allowance", "rebate",
		"assessment", "chargeable", "taxable", "resident", "non-resident",
		"filing", "submission", "penalty", "compliance",
	}

	// First match wins.
	docTypeIndicators = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"e-tax-guide", regexp.MustCompile(`(?i)e-Tax\s+Guide`)},
		{"circular", regexp.MustCompile(`(?i)Circular\s*(?:No\.)?\s*[A-Z0-9/]+`)},
		{"act", regexp.MustCompile(`(?i)Income Tax Act|GST Act|Property Tax Act|Stamp Duties Act`)},
		{"form", regexp.MustCompile(`(?i)(?:IRAS\s+)?Form\s+[A-Z0-9/-]+`)},
		{"newsletter", regexp.MustCompile(`(?i)Tax Bulletin|IRAS Bulletin`)},
		{"order", regexp.MustCompile(`(?i)(?:Income Tax|GST|Property Tax)\s+(?:\([^)]+\))?\s*Order`)},
		{"regulation", regexp.MustCompile(`(?i)(?:Income Tax|GST)\s+(?:\([^)]+\))?\s*Regulations?`)},
	}

	// Ties go to the earlier entry.
	categoryIndicators = []struct {
		name string
		re   *regexp.Regexp
	}{
		{"income", regexp.MustCompile(`(?i)Income Tax|Individual Tax|Personal Tax`)},
		{"gst", regexp.MustCompile(`(?i)GST|Goods and Services Tax|Value Added Tax`)},
		{"property", regexp.MustCompile(`(?i)Property Tax|Real Estate Tax`)},
		{"corporate", regexp.MustCompile(`(?i)Corporate Tax|Company Tax|Business Tax`)},
		{"stamp-duty", regexp.MustCompile(`(?i)Stamp Dut(?:y|ies)|Stamp Tax`)},
		{"withholding", regexp.MustCompile(`(?i)Withholding Tax`)},
		{"transfer-pricing", regexp.MustCompile(`(?i)Transfer Pricing`)},
		{"estate-duty", regexp.MustCompile(`(?i)Estate Duty`)},
	}
)

// Extractor extracts Metadata from document text. The zero value is ready
// to use and safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor { return &Extractor{} }

// Extract runs every sub-extraction over text. filename is optional and
// only supplies the document ID and a fallback year of assessment.
func (e *Extractor) Extract(text, filename string) Metadata {
	m := Metadata{
		Title:        extractTitle(text),
		DocumentType: identifyDocumentType(text),
		TaxCategory:  identifyTaxCategory(text),
	}

	m.PublicationDate = firstGroup(publishedRe, window(text, publicationWindow))
	m.LastUpdated = firstGroup(updatedRe, window(text, updatedWindow))
	m.EffectiveDate = firstGroup(effectiveRe, window(text, effectiveWindow))

	m.YearsOfAssessment = yearsOfAssessment(text)
	if len(m.YearsOfAssessment) == 0 && filename != "" {
		if y := filenameYear(filename); y != "" {
			m.YearsOfAssessment = []string{y}
		}
	}

	head := window(text, versionWindow)
	m.Version = firstGroup(versionRe, head)
	m.Revision = firstGroup(revisionRe, head)
	m.Supersedes = strings.TrimRight(strings.TrimSpace(firstGroup(supersedesRe, head)), ".;:")

	m.Sections = extractSections(text)
	m.ActReferences = limit(uniqueMatches(actRe, text, 0), maxReferences)
	m.CircularReferences = limit(uniqueMatches(circularRe, text, 1), maxReferences)

	m.HasTables = tableRowRe.MatchString(text)
	m.HasForms = formRe.MatchString(text)
	m.HasExamples = exampleRe.MatchString(text)
	m.TaxRatesMentioned = extractRates(text)
	m.ReliefsMentioned = extractReliefs(text)
	m.Keywords = extractKeywords(text)
	m.Subcategory = subcategory(m.TaxCategory, text)

	if filename != "" {
		m.DocumentID = documentIDRe.FindString(filename)
	}
	return m
}

func extractTitle(text string) string {
	lines := strings.Split(window(text, titleWindow), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 10 {
			continue
		}
		upper := strings.ToUpper(line)
		for _, kw := range titleKeywords {
			if strings.Contains(upper, kw) {
				return strings.Trim(strings.Join(strings.Fields(line), " "), ".,;:")
			}
		}
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 20 {
			return window(line, 200)
		}
	}
	return "Untitled Document"
}

func identifyDocumentType(text string) string {
	sample := window(text, typeWindow)
	for _, ind := range docTypeIndicators {
		if ind.re.MatchString(sample) {
			return ind.name
		}
	}
	lower := strings.ToLower(sample)
	switch {
	case strings.Contains(lower, "guide"):
		return "guide"
	case strings.Contains(lower, "form") && (strings.Contains(lower, "fill") || strings.Contains(lower, "submit")):
		return "form"
	}
	return "general"
}

func identifyTaxCategory(text string) string {
	sample := window(text, categoryWindow)
	best, bestCount := "general", 0
	for _, ind := range categoryIndicators {
		if n := len(ind.re.FindAllStringIndex(sample, -1)); n > bestCount {
			best, bestCount = ind.name, n
		}
	}
	return best
}

func subcategory(category, text string) string {
	lower := strings.ToLower(window(text, categoryWindow))
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch category {
	case "income":
		switch {
		case has("individual", "personal"):
			return "individual"
		case has("employment"):
			return "employment"
		case has("self-employed"):
			return "self-employed"
		}
	case "gst":
		switch {
		case has("registration"):
			return "registration"
		case has("filing", "return"):
			return "filing"
		case has("import", "export"):
			return "international"
		}
	case "property":
		switch {
		case has("residential"):
			return "residential"
		case has("commercial", "industrial"):
			return "commercial"
		}
	}
	return "general"
}

func yearsOfAssessment(text string) []string {
	years := map[string]bool{}
	for _, re := range []*regexp.Regexp{yaExplicitRe, yaBasisRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			years[m[1]] = true
		}
	}
	for _, m := range yaRangeRe.FindAllStringSubmatch(text, -1) {
		start, err1 := strconv.Atoi(m[1])
		end, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || end < start || end-start > maxRangeYears {
			continue
		}
		for y := start; y <= end; y++ {
			years[strconv.Itoa(y)] = true
		}
	}
	if len(years) == 0 {
		return nil
	}
	out := make([]string, 0, len(years))
	for y := range years {
		out = append(out, y)
	}
	sort.Strings(out)
	return out
}

// filenameYear returns the first plausible four-digit year in a filename.
func filenameYear(filename string) string {
	for _, tok := range yearTokenRe.FindAllString(filename, -1) {
		n, _ := strconv.Atoi(tok)
		if n >= 1990 && n <= 2030 {
			return tok
		}
	}
	return ""
}

func extractSections(text string) []string {
	type hit struct {
		pos   int
		label string
	}
	var hits []hit
	for _, re := range sectionRes {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			id := text[idx[2]:idx[3]]
			title := strings.TrimSpace(text[idx[4]:idx[5]])
			hits = append(hits, hit{pos: idx[0], label: id + ": " + title})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	var out []string
	seen := map[string]bool{}
	for _, h := range hits {
		if seen[h.label] {
			continue
		}
		seen[h.label] = true
		out = append(out, h.label)
		if len(out) == maxSections {
			break
		}
	}
	return out
}

func extractRates(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, re := range rateRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			rate := m[1] + "%"
			if seen[rate] {
				continue
			}
			seen[rate] = true
			out = append(out, rate)
			if len(out) == maxRates {
				return out
			}
		}
	}
	return out
}

func extractReliefs(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range reliefRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if len(name) <= 3 {
			continue
		}
		relief := strings.Join(strings.Fields(name), " ") + " " + m[2]
		if seen[relief] {
			continue
		}
		seen[relief] = true
		out = append(out, relief)
		if len(out) == maxReliefs {
			break
		}
	}
	return out
}

func extractKeywords(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, kw := range taxKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func firstGroup(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// uniqueMatches returns the given capture group of every match, first-seen
// order, without duplicates.
func uniqueMatches(re *regexp.Regexp, text string, group int) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := strings.TrimSpace(m[group])
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func limit(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// window returns at most n bytes of s without splitting a rune.
func window(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
