// Package store defines the records and persistence contracts shared by the
// ingestion cache and the document version registry.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no record.
var ErrNotFound = errors.New("not found")

// CacheEntry records the last successful ingestion of a file.
type CacheEntry struct {
	Path         string    `json:"path"`
	Hash         string    `json:"hash"`
	Timestamp    time.Time `json:"timestamp"`
	ChunkCount   int       `json:"chunk_count"`
	DocumentType string    `json:"document_type"`
	TaxCategory  string    `json:"tax_category"`
}

// DocumentVersion is the registry record for one filename.
type DocumentVersion struct {
	Filename         string    `json:"filename"`
	Family           string    `json:"family"`
	ContentHash      string    `json:"content_hash"`
	FileSize         int64     `json:"file_size"`
	LastModified     time.Time `json:"last_modified"`
	VersionDate      string    `json:"version_date,omitempty"`
	YearOfAssessment string    `json:"year_of_assessment,omitempty"`
	DocumentType     string    `json:"document_type"`
	Supersedes       string    `json:"supersedes,omitempty"`
	IsCurrent        bool      `json:"is_current"`
	RegisteredAt     time.Time `json:"registered_at"`
}

// Cache persists ingestion cache entries keyed by path.
type Cache interface {
	GetCache(ctx context.Context, path string) (CacheEntry, error)
	PutCache(ctx context.Context, e CacheEntry) error
	DeleteCache(ctx context.Context, path string) error
}

// Versions persists one current record per filename plus the records it
// replaced.
type Versions interface {
	GetVersion(ctx context.Context, filename string) (DocumentVersion, error)
	// PutVersion inserts or replaces the record for v.Filename.
	PutVersion(ctx context.Context, v DocumentVersion) error
	// ArchiveVersion keeps a replaced record for history queries.
	ArchiveVersion(ctx context.Context, v DocumentVersion) error
	ListVersions(ctx context.Context) ([]DocumentVersion, error)
	ListArchived(ctx context.Context, family string) ([]DocumentVersion, error)
}
