// Package classify assigns a document type and tax category to a document
// using weighted regex and keyword tables.
package classify

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	titleWeight    = 3.0
	filenameWeight = 2.5
	headerWeight   = 2.0
	contentStep    = 0.5
	contentCap     = 3.0

	headerWindow = 2000
	maxKeywords  = 10

	// Below this score on every entry a table falls back to general.
	minScore = 1.0
)

// Classification is the outcome of classifying one document.
type Classification struct {
	DocumentType  DocumentType `json:"document_type"`
	TaxCategory   TaxCategory  `json:"tax_category"`
	Confidence    float64      `json:"confidence"`
	SubType       string       `json:"sub_type,omitempty"`
	KeywordsFound []string     `json:"keywords_found"`
}

type compiledRule struct {
	label    string
	patterns []*regexp.Regexp
	keywords []string
	weight   float64
}

// Classifier holds the compiled pattern tables. It has no mutable state and
// is safe for concurrent use.
type Classifier struct {
	docTypes   []compiledRule
	categories []compiledRule
}

// New compiles the pattern tables.
func New() *Classifier {
	return &Classifier{
		docTypes:   compile(documentTypeRules),
		categories: compile(taxCategoryRules),
	}
}

func compile(rules []rule) []compiledRule {
	out := make([]compiledRule, len(rules))
	for i, r := range rules {
		c := compiledRule{label: r.label, keywords: r.keywords, weight: r.weight}
		for _, p := range r.patterns {
			c.patterns = append(c.patterns, regexp.MustCompile(`(?i)`+p))
		}
		out[i] = c
	}
	return out
}

type scored struct {
	label string
	score float64
	rule  *compiledRule
}

// Classify scores text, filename and title against both tables.
func (c *Classifier) Classify(text, filename, title string) Classification {
	in := input{
		text:     strings.ToLower(text),
		header:   strings.ToLower(prefix(text, headerWindow)),
		title:    strings.ToLower(title),
		filename: strings.ToLower(filename),
	}

	docScores := scoreTable(c.docTypes, in, string(GeneralDocument))
	catScores := scoreTable(c.categories, in, string(GeneralCategory))
	bestDoc := best(docScores)
	bestCat := best(catScores)

	result := Classification{
		DocumentType:  DocumentType(bestDoc.label),
		TaxCategory:   TaxCategory(bestCat.label),
		Confidence:    confidence(docScores, catScores),
		KeywordsFound: foundKeywords(in.text, bestDoc.rule, bestCat.rule),
	}
	result.SubType = subType(result.DocumentType, in.text)
	return result
}

type input struct {
	text, header, title, filename string
}

func scoreTable(rules []compiledRule, in input, general string) []scored {
	out := make([]scored, 0, len(rules)+1)
	decisive := false
	for i := range rules {
		r := &rules[i]
		s := scoreRule(r, in)
		if s >= minScore {
			decisive = true
		}
		out = append(out, scored{label: r.label, score: s, rule: r})
	}
	if !decisive {
		out = append(out, scored{label: general, score: minScore})
	}
	return out
}

func scoreRule(r *compiledRule, in input) float64 {
	var score float64
	for _, p := range r.patterns {
		var hits float64
		if in.title != "" && p.MatchString(in.title) {
			hits += titleWeight
		}
		if in.filename != "" && p.MatchString(in.filename) {
			hits += filenameWeight
		}
		if p.MatchString(in.header) {
			hits += headerWeight
		}
		if n := len(p.FindAllStringIndex(in.text, -1)); n > 0 {
			hits += math.Min(float64(n)*contentStep, contentCap)
		}
		score += r.weight * hits
	}
	for _, kw := range r.keywords {
		if strings.Contains(in.text, kw) {
			score += r.weight
		}
	}
	return score
}

// best returns the highest score, earliest entry on ties.
func best(scores []scored) scored {
	top := scores[0]
	for _, s := range scores[1:] {
		if s.score > top.score {
			top = s
		}
	}
	return top
}

// separation is (top1-top2)/top1, or 0 when nothing scored.
func separation(scores []scored) float64 {
	var first, second float64
	for _, s := range scores {
		switch {
		case s.score > first:
			first, second = s.score, first
		case s.score > second:
			second = s.score
		}
	}
	if first <= 0 {
		return 0
	}
	return (first - second) / first
}

func confidence(docScores, catScores []scored) float64 {
	base := math.Min(0.7, (best(docScores).score+best(catScores).score)/20)
	c := base + 0.15*(separation(docScores)+separation(catScores))
	return math.Max(0, math.Min(1, c))
}

func subType(dt DocumentType, text string) string {
	for _, st := range subTypeRules[dt] {
		for _, kw := range st.keywords {
			if strings.Contains(text, kw) {
				return st.name
			}
		}
	}
	return ""
}

func foundKeywords(text string, rules ...*compiledRule) []string {
	found := []string{}
	seen := map[string]bool{}
	for _, r := range rules {
		if r == nil {
			continue
		}
		for _, kw := range r.keywords {
			if seen[kw] || !strings.Contains(text, kw) {
				continue
			}
			seen[kw] = true
			found = append(found, kw)
			if len(found) == maxKeywords {
				return found
			}
		}
	}
	return found
}

// prefix returns at most n bytes of s without splitting a rune.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
