package versioning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/extract"
)

// ScanItem is one document presented to Scan with its extracted metadata.
// DocumentType is the classifier's label, the same one ingest records; when
// empty the extractor's label is used.
type ScanItem struct {
	Doc          *doctree.Document
	Meta         extract.Metadata
	DocumentType string
}

// UpdateReport summarizes a Scan.
type UpdateReport struct {
	Timestamp       time.Time           `json:"timestamp"`
	Total           int                 `json:"total"`
	New             []string            `json:"new"`
	Updated         []string            `json:"updated"`
	Unchanged       []string            `json:"unchanged"`
	Obsolete        []string            `json:"obsolete"`
	Failed          map[string]string   `json:"failed,omitempty"`
	Changes         map[string][]string `json:"changes,omitempty"`
	Conflicts       []Conflict          `json:"conflicts"`
	Stale           []string            `json:"stale,omitempty"`
	Recommendations []string            `json:"recommendations"`
}

// Scan checks every item, registers new and updated editions, and reports
// conflicts, stale documents and recommended follow-ups. A failure on one
// item is recorded and does not stop the scan; only ctx cancellation does.
func (d *Detector) Scan(ctx context.Context, items []ScanItem) (UpdateReport, error) {
	r := UpdateReport{
		Timestamp: d.now().UTC(),
		Total:     len(items),
		Failed:    map[string]string{},
		Changes:   map[string][]string{},
	}

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		name := it.Doc.Filename
		u, err := d.Check(ctx, it.Doc, it.Meta)
		if err != nil {
			d.log.Error("scan check failed", "file", name, "error", err)
			r.Failed[name] = err.Error()
			continue
		}
		if len(u.Changes) > 0 {
			r.Changes[name] = u.Changes
		}

		switch u.Status {
		case StatusNew, StatusUpdated:
			docType := it.DocumentType
			if docType == "" {
				docType = it.Meta.DocumentType
			}
			if _, err := d.Register(ctx, it.Doc, it.Meta, docType); err != nil {
				d.log.Error("scan register failed", "file", name, "error", err)
				r.Failed[name] = err.Error()
				continue
			}
			if u.Status == StatusNew {
				r.New = append(r.New, name)
			} else {
				r.Updated = append(r.Updated, name)
			}
		case StatusUnchanged:
			r.Unchanged = append(r.Unchanged, name)
		case StatusObsolete:
			r.Obsolete = append(r.Obsolete, name)
		}
	}

	conflicts, err := d.Conflicts(ctx)
	if err != nil {
		return r, err
	}
	r.Conflicts = conflicts

	stale, err := d.stale(ctx)
	if err != nil {
		return r, err
	}
	r.Stale = stale
	r.Recommendations = recommendations(r)
	return r, nil
}

func (d *Detector) stale(ctx context.Context) ([]string, error) {
	all, err := d.store.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	cutoff := d.now().Add(-d.staleAfter)
	var stale []string
	for _, v := range all {
		if v.IsCurrent && v.LastModified.Before(cutoff) {
			stale = append(stale, v.Filename)
		}
	}
	return stale, nil
}

func recommendations(r UpdateReport) []string {
	var recs []string
	if n := len(r.New); n > 0 {
		recs = append(recs, fmt.Sprintf("Process %d new documents for indexing", n))
	}
	if n := len(r.Updated); n > 0 {
		recs = append(recs, fmt.Sprintf("Re-process %d updated documents", n))
	}
	if n := len(r.Obsolete); n > 0 {
		recs = append(recs, fmt.Sprintf("Consider removing %d obsolete documents from index", n))
	}
	if n := len(r.Conflicts); n > 0 {
		recs = append(recs, fmt.Sprintf("Resolve %d version conflicts: multiple current editions", n))
		for _, c := range r.Conflicts[:min(3, n)] {
			recs = append(recs, "  Check versions: "+strings.Join(c.Files[:min(2, len(c.Files))], ", "))
		}
	}
	if n := len(r.Stale); n > 0 {
		recs = append(recs, fmt.Sprintf("Review %d documents with no update in over a year", n))
	}
	return recs
}

// Summary renders the report for terminals and log files.
func (r UpdateReport) Summary() string {
	rule := strings.Repeat("=", 70)
	sub := strings.Repeat("-", 40)

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "DOCUMENT UPDATE REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Scanned at: %s\n\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintln(&b, "SUMMARY")
	fmt.Fprintln(&b, sub)
	fmt.Fprintf(&b, "Total documents scanned: %d\n", r.Total)
	fmt.Fprintf(&b, "New documents: %d\n", len(r.New))
	fmt.Fprintf(&b, "Updated documents: %d\n", len(r.Updated))
	fmt.Fprintf(&b, "Obsolete documents: %d\n", len(r.Obsolete))
	fmt.Fprintf(&b, "Unchanged documents: %d\n", len(r.Unchanged))
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "Failed checks: %d\n", len(r.Failed))
	}
	b.WriteString("\n")

	if len(r.Conflicts) > 0 {
		fmt.Fprintln(&b, "VERSION CONFLICTS")
		fmt.Fprintln(&b, sub)
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "Document family: %s\n", c.Family)
			fmt.Fprintf(&b, "Conflicting files: %s\n", strings.Join(c.Files[:min(3, len(c.Files))], ", "))
			fmt.Fprintf(&b, "Reason: %s\n\n", c.Reason)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(&b, "RECOMMENDATIONS")
		fmt.Fprintln(&b, sub)
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}
	b.WriteString(rule)
	return b.String()
}
