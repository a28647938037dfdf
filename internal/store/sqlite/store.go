// Package sqlite persists the ingestion cache and version registry in a
// single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dgallion1/regingest/internal/store"
	"github.com/dgallion1/regingest/internal/store/sqlite/migrations"
)

// Store implements store.Cache and store.Versions.
type Store struct {
	db   *sql.DB
	path string
}

var (
	_ store.Cache    = (*Store)(nil)
	_ store.Versions = (*Store)(nil)
)

// NewStore opens (creating if needed) regingest.db under dataDir and
// applies pending migrations.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "regingest.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// ==================== Cache ====================

func (s *Store) GetCache(ctx context.Context, path string) (store.CacheEntry, error) {
	var e store.CacheEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT path, hash, timestamp, chunk_count, document_type, tax_category
		FROM cache_entries WHERE path = ?
	`, path).Scan(&e.Path, &e.Hash, &e.Timestamp, &e.ChunkCount, &e.DocumentType, &e.TaxCategory)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CacheEntry{}, store.ErrNotFound
	}
	if err != nil {
		return store.CacheEntry{}, fmt.Errorf("scanning cache entry: %w", err)
	}
	return e, nil
}

func (s *Store) PutCache(ctx context.Context, e store.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (path, hash, timestamp, chunk_count, document_type, tax_category)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			timestamp = excluded.timestamp,
			chunk_count = excluded.chunk_count,
			document_type = excluded.document_type,
			tax_category = excluded.tax_category
	`, e.Path, e.Hash, e.Timestamp.UTC(), e.ChunkCount, e.DocumentType, e.TaxCategory)
	if err != nil {
		return fmt.Errorf("saving cache entry: %w", err)
	}
	return nil
}

func (s *Store) DeleteCache(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE path = ?", path); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// ==================== Versions ====================

const versionColumns = `filename, family, content_hash, file_size, last_modified, version_date,
	year_of_assessment, document_type, supersedes, is_current, registered_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (store.DocumentVersion, error) {
	var v store.DocumentVersion
	err := row.Scan(&v.Filename, &v.Family, &v.ContentHash, &v.FileSize, &v.LastModified,
		&v.VersionDate, &v.YearOfAssessment, &v.DocumentType, &v.Supersedes, &v.IsCurrent, &v.RegisteredAt)
	return v, err
}

func (s *Store) GetVersion(ctx context.Context, filename string) (store.DocumentVersion, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM document_versions WHERE filename = ?", filename)
	v, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DocumentVersion{}, store.ErrNotFound
	}
	if err != nil {
		return store.DocumentVersion{}, fmt.Errorf("scanning version: %w", err)
	}
	return v, nil
}

func (s *Store) PutVersion(ctx context.Context, v store.DocumentVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_versions (`+versionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			family = excluded.family,
			content_hash = excluded.content_hash,
			file_size = excluded.file_size,
			last_modified = excluded.last_modified,
			version_date = excluded.version_date,
			year_of_assessment = excluded.year_of_assessment,
			document_type = excluded.document_type,
			supersedes = excluded.supersedes,
			is_current = excluded.is_current,
			registered_at = excluded.registered_at
	`, v.Filename, v.Family, v.ContentHash, v.FileSize, v.LastModified.UTC(), v.VersionDate,
		v.YearOfAssessment, v.DocumentType, v.Supersedes, v.IsCurrent, v.RegisteredAt.UTC())
	if err != nil {
		return fmt.Errorf("saving version: %w", err)
	}
	return nil
}

func (s *Store) ArchiveVersion(ctx context.Context, v store.DocumentVersion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO version_history (filename, family, content_hash, file_size, last_modified,
			version_date, year_of_assessment, document_type, supersedes, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.Filename, v.Family, v.ContentHash, v.FileSize, v.LastModified.UTC(), v.VersionDate,
		v.YearOfAssessment, v.DocumentType, v.Supersedes, v.RegisteredAt.UTC())
	if err != nil {
		return fmt.Errorf("archiving version: %w", err)
	}
	return nil
}

func (s *Store) ListVersions(ctx context.Context) ([]store.DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+versionColumns+" FROM document_versions ORDER BY filename")
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListArchived returns archived records for family, oldest archive first.
// Archived records are never current.
func (s *Store) ListArchived(ctx context.Context, family string) ([]store.DocumentVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, family, content_hash, file_size, last_modified, version_date,
			year_of_assessment, document_type, supersedes, 0, registered_at
		FROM version_history WHERE family = ? ORDER BY id
	`, family)
	if err != nil {
		return nil, fmt.Errorf("querying version history: %w", err)
	}
	defer rows.Close()

	var out []store.DocumentVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning version history: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
