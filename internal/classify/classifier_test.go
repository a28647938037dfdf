package classify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_ETaxGuideOnGST(t *testing.T) {
	c := New()
	text := "IRAS e-Tax Guide\nGST: General Guide for Businesses\nThe standard GST rate is 9%."

	got := c.Classify(text, "", "")

	assert.Equal(t, ETaxGuide, got.DocumentType)
	assert.Equal(t, GST, got.TaxCategory)
	assert.Greater(t, got.Confidence, 0.5)
	assert.Contains(t, got.KeywordsFound, "guide")
	assert.Contains(t, got.KeywordsFound, "gst")
}

func TestClassify_EmptyInputDefaultsToGeneral(t *testing.T) {
	got := New().Classify("", "", "")

	assert.Equal(t, GeneralDocument, got.DocumentType)
	assert.Equal(t, GeneralCategory, got.TaxCategory)
	assert.GreaterOrEqual(t, got.Confidence, 0.0)
	assert.LessOrEqual(t, got.Confidence, 1.0)
	assert.Empty(t, got.KeywordsFound)
	assert.Empty(t, got.SubType)
}

func TestClassify_TitleOnly(t *testing.T) {
	got := New().Classify("", "", "IRAS Circular on Property Tax")

	assert.Equal(t, Circular, got.DocumentType)
	assert.Equal(t, PropertyTax, got.TaxCategory)
}

func TestClassify_FilenameContributes(t *testing.T) {
	got := New().Classify("", "stamp duty faqs.pdf", "")

	assert.Equal(t, FAQ, got.DocumentType)
	assert.Equal(t, StampDuty, got.TaxCategory)
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	text := strings.Repeat("Income tax relief for residents under the Income Tax Act 1947. ", 20)

	first := c.Classify(text, "income_tax_act.pdf", "Income Tax Act")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(text, "income_tax_act.pdf", "Income Tax Act"))
	}
	assert.Equal(t, first, New().Classify(text, "income_tax_act.pdf", "Income Tax Act"))
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	c := New()
	inputs := []struct{ text, filename, title string }{
		{"", "", ""},
		{"x", "y", "z"},
		{strings.Repeat("GST e-Tax Guide income tax act form IR8A annual report ", 200), "gst_guide.pdf", "IRAS e-Tax Guide GST"},
		{"日本語のテキスト", "文書.pdf", "タイトル"},
	}
	for _, in := range inputs {
		got := c.Classify(in.text, in.filename, in.title)
		assert.GreaterOrEqual(t, got.Confidence, 0.0, "text %q", in.text)
		assert.LessOrEqual(t, got.Confidence, 1.0, "text %q", in.text)
	}
}

func TestClassify_SubType(t *testing.T) {
	got := New().Classify("IRAS e-Tax Guide on filing deadlines for income tax", "", "")

	require.Equal(t, ETaxGuide, got.DocumentType)
	assert.Equal(t, "filing", got.SubType)
}

func TestClassify_KeywordsDedupedAndCapped(t *testing.T) {
	text := "IRAS e-Tax Guide: guidance, treatment and application of income tax. " +
		"salary employment resident non-resident relief deduction assessment"

	got := New().Classify(text, "", "")

	require.Equal(t, ETaxGuide, got.DocumentType)
	require.Equal(t, IncomeTax, got.TaxCategory)
	assert.Len(t, got.KeywordsFound, 10)
	assert.Equal(t, "guide", got.KeywordsFound[0])
	seen := map[string]bool{}
	for _, kw := range got.KeywordsFound {
		assert.False(t, seen[kw], "duplicate keyword %q", kw)
		seen[kw] = true
	}
}

func TestSeparation(t *testing.T) {
	assert.Equal(t, 0.0, separation([]scored{{score: 0}, {score: 0}}))
	assert.Equal(t, 0.0, separation([]scored{{score: 2}, {score: 2}}))
	assert.InDelta(t, 0.75, separation([]scored{{score: 1}, {score: 4}, {score: 0.5}}), 1e-9)
}

func TestPrefix_DoesNotSplitRunes(t *testing.T) {
	s := "ab€cd"
	assert.Equal(t, "ab", prefix(s, 3))
	assert.Equal(t, "ab€", prefix(s, 5))
	assert.Equal(t, s, prefix(s, 100))
}
