package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TextReport renders a batch report for terminals and log files.
func TextReport(r BatchReport) string {
	rule := strings.Repeat("=", 70)
	sub := strings.Repeat("-", 40)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "BATCH PROCESSING REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Started: %s\n\n", r.StartedAt.Format(time.RFC3339))

	fmt.Fprintln(&b, "SUMMARY")
	fmt.Fprintln(&b, sub)
	fmt.Fprintf(&b, "Total files: %d\n", r.Total)
	fmt.Fprintf(&b, "Successful: %d\n", r.Successful)
	fmt.Fprintf(&b, "Failed: %d\n", r.Failed)
	fmt.Fprintf(&b, "Skipped: %d\n", r.Skipped)
	fmt.Fprintf(&b, "Total chunks created: %d\n", r.TotalChunks)
	fmt.Fprintf(&b, "Total time: %.2fs\n", r.Duration().Seconds())
	if r.Total > 0 {
		fmt.Fprintf(&b, "Average time per file: %.2fs\n", r.Duration().Seconds()/float64(r.Total))
	}
	if r.Cancelled {
		fmt.Fprintln(&b, "Run was cancelled before all files started")
	}
	b.WriteString("\n")

	section(&b, sub, "SUCCESSFUL", r.Results, StatusSuccess, func(p ProcessingResult) string {
		line := fmt.Sprintf("%s: %d chunks, %.2fs, type %s, category %s",
			p.Filename, p.ChunksCreated, p.ProcessingTime.Seconds(), p.DocumentType, p.TaxCategory)
		if p.ChunksDropped > 0 {
			line += fmt.Sprintf(", %d dropped", p.ChunksDropped)
		}
		return line
	})
	section(&b, sub, "FAILED", r.Results, StatusFailed, func(p ProcessingResult) string {
		return fmt.Sprintf("%s: %s", p.Filename, p.Error)
	})
	section(&b, sub, "SKIPPED", r.Results, StatusSkipped, func(p ProcessingResult) string {
		return fmt.Sprintf("%s: %s", p.Filename, p.Error)
	})

	distribution(&b, sub, "DOCUMENT TYPE DISTRIBUTION", r.Results, func(p ProcessingResult) string { return p.DocumentType })
	distribution(&b, sub, "TAX CATEGORY DISTRIBUTION", r.Results, func(p ProcessingResult) string { return p.TaxCategory })

	if len(r.VersionConflicts) > 0 {
		fmt.Fprintln(&b, "VERSION CONFLICTS")
		fmt.Fprintln(&b, sub)
		for _, c := range r.VersionConflicts {
			fmt.Fprintf(&b, "%s: %s (%s)\n", c.Family, strings.Join(c.Files, ", "), c.Reason)
		}
		b.WriteString("\n")
	}

	var low []string
	for _, p := range r.Results {
		if p.LowConfidence {
			low = append(low, fmt.Sprintf("%s: %.2f (%s)", p.Filename, p.Confidence, p.DocumentType))
		}
	}
	if len(low) > 0 {
		fmt.Fprintln(&b, "LOW CONFIDENCE")
		fmt.Fprintln(&b, sub)
		for _, l := range low {
			fmt.Fprintln(&b, l)
		}
		b.WriteString("\n")
	}

	b.WriteString(rule)
	b.WriteString("\n")
	return b.String()
}

func section(b *strings.Builder, sub, title string, results []ProcessingResult, status Status, line func(ProcessingResult) string) {
	var lines []string
	for _, p := range results {
		if p.Status == status {
			lines = append(lines, line(p))
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(b, title)
	fmt.Fprintln(b, sub)
	for _, l := range lines {
		fmt.Fprintf(b, "- %s\n", l)
	}
	b.WriteString("\n")
}

// distribution counts successful results by key.
func distribution(b *strings.Builder, sub, title string, results []ProcessingResult, key func(ProcessingResult) string) {
	counts := map[string]int{}
	for _, p := range results {
		if p.Status == StatusSuccess {
			counts[key(p)]++
		}
	}
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintln(b, title)
	fmt.Fprintln(b, sub)
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %d\n", k, counts[k])
	}
	b.WriteString("\n")
}

// SaveReport writes batch_report_<stamp>.json and .txt into dir and
// returns both paths.
func SaveReport(dir string, r BatchReport) (string, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}
	stamp := r.StartedAt.Format("20060102_150405")
	base := filepath.Join(dir, "batch_report_"+stamp)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal report: %w", err)
	}
	jsonPath := base + ".json"
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write report: %w", err)
	}
	txtPath := base + ".txt"
	if err := os.WriteFile(txtPath, []byte(TextReport(r)), 0o644); err != nil {
		return "", "", fmt.Errorf("write text report: %w", err)
	}
	return jsonPath, txtPath, nil
}
