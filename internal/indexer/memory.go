package indexer

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory keeps records in process. It enforces its limits like a remote
// sink would, which makes it useful for dry runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	limits  Limits
	pushes  int
}

func NewMemory(limits Limits) *Memory {
	return &Memory{records: make(map[string]Record), limits: limits}
}

func (m *Memory) Limits() Limits { return m.limits }

func (m *Memory) Push(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fits(records, m.limits); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	m.pushes++
	return nil
}

// Len returns the number of distinct records held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Pushes returns the number of accepted Push calls.
func (m *Memory) Pushes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pushes
}

// Records returns the held records ordered by source file then index.
func (m *Memory) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := strings.Compare(a.Chunk.SourceFile, b.Chunk.SourceFile); c != 0 {
			return c
		}
		return a.Chunk.Index - b.Chunk.Index
	})
	return out
}
