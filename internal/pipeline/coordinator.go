package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/regingest/internal/chunker"
	"github.com/dgallion1/regingest/internal/classify"
	"github.com/dgallion1/regingest/internal/config"
	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/extract"
	"github.com/dgallion1/regingest/internal/indexer"
	"github.com/dgallion1/regingest/internal/keylock"
	"github.com/dgallion1/regingest/internal/parser"
	"github.com/dgallion1/regingest/internal/store"
	"github.com/dgallion1/regingest/internal/versioning"
)

// ErrInputDir is returned when the input directory is missing or unreadable.
var ErrInputDir = errors.New("input directory")

// Loader turns a file path into a Document.
type Loader interface {
	Load(ctx context.Context, path string) (*doctree.Document, error)
}

// Source is one run input: a path to load, or an already extracted Document.
type Source struct {
	Path string
	Doc  *doctree.Document
}

func (s Source) name() string {
	if s.Doc != nil {
		if s.Doc.Filename != "" {
			return s.Doc.Filename
		}
		return filepath.Base(s.Doc.Path)
	}
	return filepath.Base(s.Path)
}

// Progress is called after each file finishes, from the worker goroutine.
type Progress func(done, total int, r ProcessingResult)

// Coordinator runs batches of documents through parse, classify, extract,
// chunk and push. It is safe for concurrent runs.
type Coordinator struct {
	cfg        config.Config
	indexer    indexer.Indexer
	cache      store.Cache
	versions   *versioning.Detector
	loader     Loader
	classifier *classify.Classifier
	extractor  *extract.Extractor
	chunker    *chunker.Chunker
	log        *slog.Logger

	locks   *keylock.Locks
	backoff func(attempt int) time.Duration
}

// NewCoordinator wires a Coordinator. cache and versions may be nil, in
// which case caching or version tracking is skipped.
func NewCoordinator(cfg config.Config, ix indexer.Indexer, cache store.Cache, versions *versioning.Detector, loader Loader, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if loader == nil {
		loader = &parser.Loader{FallbackPdftotext: cfg.PDFFallbackPdftotext}
	}
	return &Coordinator{
		cfg:        cfg,
		indexer:    ix,
		cache:      cache,
		versions:   versions,
		loader:     loader,
		classifier: classify.New(),
		extractor:  extract.New(),
		chunker: chunker.New(chunker.Config{
			TargetSize: cfg.ChunkTargetSize,
			Overlap:    cfg.ChunkOverlap,
			MaxSize:    cfg.ChunkMaxSize,
			MinSize:    cfg.ChunkMinSize,
		}),
		log:     log,
		locks:   &keylock.Locks{},
		backoff: Backoff,
	}
}

// WithCache returns a Coordinator sharing all state with c but with the
// cache gate switched on or off.
func (c *Coordinator) WithCache(on bool) *Coordinator {
	cp := *c
	cp.cfg.UseCache = on
	return &cp
}

// Versions returns the version detector, or nil.
func (c *Coordinator) Versions() *versioning.Detector { return c.versions }

// Run processes sources with a bounded worker pool. Cancelling ctx stops
// new files from starting; files already started run to completion.
func (c *Coordinator) Run(ctx context.Context, sources []Source) (BatchReport, error) {
	return c.RunObserved(ctx, sources, nil)
}

// RunDirectory discovers supported files in dir and runs them.
func (c *Coordinator) RunDirectory(ctx context.Context, dir string) (BatchReport, error) {
	return c.RunDirectoryObserved(ctx, dir, nil)
}

// RunDirectoryObserved is RunDirectory with a progress callback.
func (c *Coordinator) RunDirectoryObserved(ctx context.Context, dir string, progress Progress) (BatchReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return BatchReport{}, fmt.Errorf("%w %s: %w", ErrInputDir, dir, err)
	}
	if !info.IsDir() {
		return BatchReport{}, fmt.Errorf("%w %s: not a directory", ErrInputDir, dir)
	}
	paths, err := parser.Discover(dir, c.cfg.Recursive)
	if err != nil {
		return BatchReport{}, fmt.Errorf("%w %s: %w", ErrInputDir, dir, err)
	}
	c.log.Info("discovered documents", "dir", dir, "count", len(paths))
	if dups := sharedBaseNames(paths); len(dups) > 0 {
		c.log.Warn("files share a base name, their chunk IDs and version records collide", "dir", dir, "names", dups)
	}

	sources := make([]Source, len(paths))
	for i, p := range paths {
		sources[i] = Source{Path: p}
	}
	return c.RunObserved(ctx, sources, progress)
}

// sharedBaseNames returns the base names that more than one path carries,
// in first-seen order.
func sharedBaseNames(paths []string) []string {
	seen := make(map[string]int, len(paths))
	var dups []string
	for _, p := range paths {
		name := filepath.Base(p)
		seen[name]++
		if seen[name] == 2 {
			dups = append(dups, name)
		}
	}
	return dups
}

// RunObserved is Run with a progress callback.
func (c *Coordinator) RunObserved(ctx context.Context, sources []Source, progress Progress) (BatchReport, error) {
	report := BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Results:   make([]ProcessingResult, len(sources)),
	}
	log := c.log.With("run_id", report.RunID)
	log.Info("run started", "files", len(sources), "workers", c.cfg.WorkerCount)

	workers := c.cfg.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	if workers > len(sources) {
		workers = len(sources)
	}

	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)
	queue := make(chan int)
	// Files that have started finish even if ctx is cancelled meanwhile.
	fileCtx := context.WithoutCancel(ctx)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				r := c.process(fileCtx, log, sources[i])
				report.Results[i] = r

				if progress != nil {
					mu.Lock()
					done++
					n := done
					mu.Unlock()
					progress(n, len(sources), r)
				}
			}
		}()
	}

	next := 0
dispatch:
	for ; next < len(sources); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- next:
		}
	}
	close(queue)
	wg.Wait()

	for i := next; i < len(sources); i++ {
		report.Results[i] = ProcessingResult{
			Filename: sources[i].name(),
			Path:     sources[i].Path,
			Status:   StatusSkipped,
			Error:    errCancelled,
		}
		report.Cancelled = true
	}

	if c.versions != nil {
		conflicts, err := c.versions.Conflicts(fileCtx)
		if err != nil {
			log.Error("list version conflicts", "error", err)
		}
		report.VersionConflicts = conflicts
	}
	if report.VersionConflicts == nil {
		report.VersionConflicts = []versioning.Conflict{}
	}

	report.FinishedAt = time.Now()
	report.tally()
	log.Info("run finished",
		"successful", report.Successful,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"chunks", report.TotalChunks,
		"cancelled", report.Cancelled,
		"duration", report.Duration(),
	)
	return report, nil
}
