// Package memory is an in-process cache and version store for tests and
// one-shot runs that need no persistence.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dgallion1/regingest/internal/store"
)

// Store implements store.Cache and store.Versions.
type Store struct {
	mu       sync.RWMutex
	cache    map[string]store.CacheEntry
	versions map[string]store.DocumentVersion
	archived []store.DocumentVersion
}

var (
	_ store.Cache    = (*Store)(nil)
	_ store.Versions = (*Store)(nil)
)

func New() *Store {
	return &Store{
		cache:    make(map[string]store.CacheEntry),
		versions: make(map[string]store.DocumentVersion),
	}
}

func (s *Store) GetCache(_ context.Context, path string) (store.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[path]
	if !ok {
		return store.CacheEntry{}, store.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutCache(_ context.Context, e store.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[e.Path] = e
	return nil
}

func (s *Store) DeleteCache(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, path)
	return nil
}

func (s *Store) GetVersion(_ context.Context, filename string) (store.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[filename]
	if !ok {
		return store.DocumentVersion{}, store.ErrNotFound
	}
	return v, nil
}

func (s *Store) PutVersion(_ context.Context, v store.DocumentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.Filename] = v
	return nil
}

func (s *Store) ArchiveVersion(_ context.Context, v store.DocumentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, v)
	return nil
}

// ListVersions returns current records ordered by filename.
func (s *Store) ListVersions(_ context.Context) ([]store.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.DocumentVersion, 0, len(s.versions))
	for _, v := range s.versions {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b store.DocumentVersion) int { return strings.Compare(a.Filename, b.Filename) })
	return out, nil
}

// ListArchived returns archived records for family in archive order.
func (s *Store) ListArchived(_ context.Context, family string) ([]store.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.DocumentVersion
	for _, v := range s.archived {
		if v.Family == family {
			out = append(out, v)
		}
	}
	return out, nil
}
