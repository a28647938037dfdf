package pipeline

import (
	"fmt"
	"time"

	"github.com/dgallion1/regingest/internal/versioning"
)

// Status is the outcome of processing one file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Error text for files a cancelled run never started.
const errCancelled = "cancelled: not processed"

// ProcessingResult is the per-file record of a run.
type ProcessingResult struct {
	Filename       string            `json:"filename"`
	Path           string            `json:"path,omitempty"`
	Status         Status            `json:"status"`
	ChunksCreated  int               `json:"chunks_created"`
	ChunksDropped  int               `json:"chunks_dropped,omitempty"`
	ProcessingTime time.Duration     `json:"processing_time_ns"`
	DocumentType   string            `json:"document_type,omitempty"`
	TaxCategory    string            `json:"tax_category,omitempty"`
	Confidence     float64           `json:"confidence"`
	LowConfidence  bool              `json:"low_confidence,omitempty"`
	UpdateStatus   versioning.Status `json:"update_status,omitempty"`
	Changes        []string          `json:"changes,omitempty"`
	Error          string            `json:"error,omitempty"`
	Notes          []string          `json:"notes,omitempty"`
	FileHash       string            `json:"file_hash,omitempty"`
}

func (r *ProcessingResult) fail(format string, args ...any) {
	r.Status = StatusFailed
	r.Error = fmt.Sprintf(format, args...)
}

func (r *ProcessingResult) skip(reason string) {
	r.Status = StatusSkipped
	r.Error = reason
}

func (r *ProcessingResult) note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// BatchReport summarises one run. Results holds exactly one entry per
// input, in input order.
type BatchReport struct {
	RunID            string                `json:"run_id"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       time.Time             `json:"finished_at"`
	Total            int                   `json:"total_files"`
	Successful       int                   `json:"successful"`
	Failed           int                   `json:"failed"`
	Skipped          int                   `json:"skipped"`
	TotalChunks      int                   `json:"total_chunks"`
	Cancelled        bool                  `json:"cancelled,omitempty"`
	Results          []ProcessingResult    `json:"results"`
	VersionConflicts []versioning.Conflict `json:"version_conflicts"`
}

// Duration returns the wall time of the run.
func (b BatchReport) Duration() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}

func (b *BatchReport) tally() {
	b.Total = len(b.Results)
	b.Successful, b.Failed, b.Skipped, b.TotalChunks = 0, 0, 0, 0
	for _, r := range b.Results {
		switch r.Status {
		case StatusSuccess:
			b.Successful++
		case StatusFailed:
			b.Failed++
		case StatusSkipped:
			b.Skipped++
		}
		b.TotalChunks += r.ChunksCreated
	}
}
