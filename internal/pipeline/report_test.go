package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/regingest/internal/versioning"
)

func sampleReport() BatchReport {
	start := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	rep := BatchReport{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(4 * time.Second),
		Results: []ProcessingResult{
			{Filename: "gst.pdf", Status: StatusSuccess, ChunksCreated: 5, DocumentType: "circular", TaxCategory: "gst", Confidence: 0.8},
			{Filename: "ir8a.pdf", Status: StatusSuccess, ChunksCreated: 3, ChunksDropped: 1, DocumentType: "form", TaxCategory: "income_tax", Confidence: 0.2, LowConfidence: true},
			{Filename: "broken.pdf", Status: StatusFailed, Error: "parse: no sections extracted"},
			{Filename: "old.pdf", Status: StatusSkipped, Error: "unchanged: cached"},
		},
		VersionConflicts: []versioning.Conflict{{Family: "gst", Files: []string{"gst.pdf", "gst_2023.pdf"}, Reason: "multiple_current_versions"}},
	}
	rep.tally()
	return rep
}

func TestTally(t *testing.T) {
	rep := sampleReport()
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 2, rep.Successful)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 8, rep.TotalChunks)
}

func TestTextReport_Sections(t *testing.T) {
	text := TextReport(sampleReport())

	order := []string{
		"SUMMARY",
		"SUCCESSFUL",
		"FAILED",
		"SKIPPED",
		"DOCUMENT TYPE DISTRIBUTION",
		"TAX CATEGORY DISTRIBUTION",
		"VERSION CONFLICTS",
		"LOW CONFIDENCE",
	}
	last := -1
	for _, heading := range order {
		idx := strings.Index(text, heading)
		require.GreaterOrEqual(t, idx, 0, "missing %s", heading)
		assert.Greater(t, idx, last, "%s out of order", heading)
		last = idx
	}

	assert.Contains(t, text, "Total files: 4")
	assert.Contains(t, text, "Total time: 4.00s")
	assert.Contains(t, text, "- ir8a.pdf: 3 chunks, 0.00s, type form, category income_tax, 1 dropped")
	assert.Contains(t, text, "- broken.pdf: parse: no sections extracted")
	assert.Contains(t, text, "  circular: 1")
	assert.Contains(t, text, "gst: gst.pdf, gst_2023.pdf (multiple_current_versions)")
	assert.Contains(t, text, "ir8a.pdf: 0.20 (form)")
	assert.NotContains(t, text, "cancelled")
}

func TestTextReport_EmptyRunOmitsSections(t *testing.T) {
	text := TextReport(BatchReport{RunID: "r"})
	assert.Contains(t, text, "Total files: 0")
	assert.NotContains(t, text, "SUCCESSFUL")
	assert.NotContains(t, text, "DISTRIBUTION")
	assert.NotContains(t, text, "Average time")
}

func TestSaveReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	rep := sampleReport()

	jsonPath, txtPath, err := SaveReport(dir, rep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch_report_20260301_093000.json"), jsonPath)
	assert.Equal(t, filepath.Join(dir, "batch_report_20260301_093000.txt"), txtPath)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded BatchReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rep.Total, decoded.Total)
	assert.Len(t, decoded.Results, 4)

	txt, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	assert.Equal(t, TextReport(rep), string(txt))
}
