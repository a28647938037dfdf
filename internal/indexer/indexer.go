// Package indexer delivers chunks and their document metadata to a
// retrieval engine. The engine itself is external; this package holds the
// sink contract and the sinks that speak to concrete backends.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/regingest/internal/chunker"
	"github.com/dgallion1/regingest/internal/classify"
	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/extract"
)

// Indexer accepts batches of records. Push must be idempotent per record
// ID: pushing the same record twice leaves one copy.
type Indexer interface {
	Push(ctx context.Context, records []Record) error
	Limits() Limits
}

// Limits bounds a single Push. Zero means unbounded.
type Limits struct {
	MaxBatchSize int `json:"max_batch_size"`
	MaxTokens    int `json:"max_tokens"`
}

// ErrLimitExceeded is returned (wrapped) when a batch is rejected for its
// size. Splitting the batch may succeed.
var ErrLimitExceeded = errors.New("indexer limit exceeded")

// RetryableError marks a transient failure worth retrying unchanged.
type RetryableError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("retryable (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is, or wraps, a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Record is one chunk as indexed, with the document-level metadata and
// classification merged in.
type Record struct {
	ID             string                  `json:"id"`
	Content        string                  `json:"content"`
	Chunk          doctree.Chunk           `json:"-"`
	Metadata       extract.Metadata        `json:"metadata"`
	Classification classify.Classification `json:"classification"`
}

// NewRecord builds the record for c. Content carries a "Section N: title"
// line ahead of the chunk so the section survives retrieval out of context.
func NewRecord(c doctree.Chunk, meta extract.Metadata, cls classify.Classification) Record {
	content := c.Content()
	if c.SectionNumber != "" {
		content = fmt.Sprintf("Section %s: %s\n%s", c.SectionNumber, c.SectionTitle, content)
	}
	return Record{
		ID:             c.ID(),
		Content:        content,
		Chunk:          c,
		Metadata:       meta,
		Classification: cls,
	}
}

// Tokens is the estimated token cost of the record.
func (r Record) Tokens() int {
	return chunker.EstimateTokens(r.Content)
}

// Properties flattens the record into the scalar fields backends filter on.
func (r Record) Properties() map[string]any {
	m := r.Metadata
	return map[string]any{
		"content":            r.Content,
		"sourceFile":         r.Chunk.SourceFile,
		"chunkIndex":         r.Chunk.Index,
		"chunkType":          string(r.Chunk.Kind),
		"sectionNumber":      r.Chunk.SectionNumber,
		"sectionTitle":       r.Chunk.SectionTitle,
		"pageStart":          r.Chunk.PageStart,
		"pageEnd":            r.Chunk.PageEnd,
		"hasTable":           r.Chunk.HasTable,
		"hasList":            r.Chunk.HasList,
		"hasTaxRate":         r.Chunk.HasTaxRate,
		"title":              m.Title,
		"documentType":       string(r.Classification.DocumentType),
		"taxCategory":        string(r.Classification.TaxCategory),
		"subType":            r.Classification.SubType,
		"confidence":         r.Classification.Confidence,
		"yearsOfAssessment":  nonNil(m.YearsOfAssessment),
		"publicationDate":    m.PublicationDate,
		"lastUpdated":        m.LastUpdated,
		"effectiveDate":      m.EffectiveDate,
		"version":            m.Version,
		"taxRatesMentioned":  nonNil(m.TaxRatesMentioned),
		"reliefsMentioned":   nonNil(m.ReliefsMentioned),
		"actReferences":      nonNil(m.ActReferences),
		"circularReferences": nonNil(m.CircularReferences),
		"documentId":         m.DocumentID,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Batches splits records into consecutive groups that respect lim. A single
// record larger than MaxTokens still forms its own batch; the sink decides.
func Batches(records []Record, lim Limits) [][]Record {
	var out [][]Record
	var cur []Record
	tokens := 0
	for _, r := range records {
		t := r.Tokens()
		full := lim.MaxBatchSize > 0 && len(cur) >= lim.MaxBatchSize
		heavy := lim.MaxTokens > 0 && len(cur) > 0 && tokens+t > lim.MaxTokens
		if full || heavy {
			out = append(out, cur)
			cur, tokens = nil, 0
		}
		cur = append(cur, r)
		tokens += t
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// fits reports whether records are within lim.
func fits(records []Record, lim Limits) error {
	if lim.MaxBatchSize > 0 && len(records) > lim.MaxBatchSize {
		return fmt.Errorf("%w: %d records > %d", ErrLimitExceeded, len(records), lim.MaxBatchSize)
	}
	if lim.MaxTokens > 0 {
		total := 0
		for _, r := range records {
			total += r.Tokens()
		}
		if total > lim.MaxTokens {
			return fmt.Errorf("%w: %d tokens > %d", ErrLimitExceeded, total, lim.MaxTokens)
		}
	}
	return nil
}
