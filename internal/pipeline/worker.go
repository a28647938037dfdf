package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/regingest/internal/classify"
	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/extract"
	"github.com/dgallion1/regingest/internal/indexer"
	"github.com/dgallion1/regingest/internal/store"
	"github.com/dgallion1/regingest/internal/structure"
	"github.com/dgallion1/regingest/internal/versioning"
)

// process runs the full pipeline for one file. Every failure, including a
// panic, ends up in the returned result.
func (c *Coordinator) process(ctx context.Context, runLog *slog.Logger, src Source) (res ProcessingResult) {
	start := time.Now()
	res = ProcessingResult{Filename: src.name(), Path: src.Path}
	log := runLog.With("file", res.Filename)

	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while processing", "panic", p, "stack", string(debug.Stack()))
			res.fail("panic: %v", p)
		}
		res.ProcessingTime = time.Since(start)
		log.Info("file processed",
			"status", res.Status,
			"chunks", res.ChunksCreated,
			"duration_ms", res.ProcessingTime.Milliseconds(),
		)
	}()

	// Phase 1: Load
	doc := src.Doc
	if doc == nil {
		var err error
		doc, err = c.loader.Load(ctx, src.Path)
		if err != nil {
			log.Error("load failed", "error", err)
			res.fail("load: %s", err)
			return res
		}
	}
	if doc.Filename == "" {
		doc.Filename = filepath.Base(doc.Path)
	}
	res.Filename = doc.Filename
	res.Path = doc.Path
	res.FileHash = doc.ContentHash()

	// Phase 2: Cache gate
	if c.cfg.UseCache && c.cache != nil {
		entry, err := c.cache.GetCache(ctx, doc.Key())
		switch {
		case err == nil && entry.Hash == res.FileHash:
			log.Info("unchanged since last run, skipping")
			res.DocumentType = entry.DocumentType
			res.TaxCategory = entry.TaxCategory
			res.skip("unchanged: cached")
			return res
		case err != nil && !errors.Is(err, store.ErrNotFound):
			log.Error("cache lookup failed, processing anyway", "error", err)
			res.note("cache: read: %s", err)
		}
	}

	// Phase 3: Parse
	sections, err := structure.Parse(doc.Pages)
	if err != nil {
		log.Error("parse failed", "error", err)
		res.fail("parse: %s", err)
		return res
	}

	// Phase 4: Classify and extract
	cls, meta, err := c.analyze(ctx, doc, sections)
	if err != nil {
		log.Error("analysis failed", "error", err)
		res.fail("analyze: %s", err)
		return res
	}
	res.DocumentType = string(cls.DocumentType)
	res.TaxCategory = string(cls.TaxCategory)
	res.Confidence = cls.Confidence
	res.LowConfidence = cls.Confidence < c.cfg.LowConfidenceThreshold
	if res.LowConfidence {
		log.Warn("low classification confidence", "confidence", cls.Confidence, "document_type", cls.DocumentType)
	}

	// Phase 5: Change check
	if c.versions != nil {
		upd, err := c.versions.Check(ctx, doc, meta)
		if err != nil {
			log.Error("version check failed", "error", err)
			res.note("version: check: %s", err)
		} else {
			res.UpdateStatus = upd.Status
			res.Changes = upd.Changes
			if upd.Status == versioning.StatusObsolete && !c.cfg.IngestObsolete {
				log.Warn("older year of assessment than registered edition, skipping", "changes", upd.Changes)
				res.skip("obsolete: older year of assessment than registered edition")
				return res
			}
		}
	}

	// Phase 6: Chunk
	chunks := c.chunker.Chunk(doc.Filename, sections)
	log.Info("chunked document", "sections", len(sections), "chunks", len(chunks))
	if len(chunks) == 0 {
		res.fail("chunk: no chunks produced")
		return res
	}

	// Phase 7: Push
	records := make([]indexer.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = indexer.NewRecord(ch, meta, cls)
	}
	pushed, dropped := c.push(ctx, log, records)
	res.ChunksCreated = pushed
	res.ChunksDropped = len(dropped)
	if pushed == 0 {
		res.fail("index: %s", strings.Join(dropped, "; "))
		return res
	}
	res.Status = StatusSuccess
	if len(dropped) > 0 {
		res.Error = fmt.Sprintf("%d of %d chunks dropped: %s", len(dropped), len(records), strings.Join(dropped, "; "))
	}

	// Phase 8: Record
	c.record(ctx, log, doc, meta, cls, pushed, &res)
	return res
}

// analyze runs the classifier and the metadata extractor side by side.
func (c *Coordinator) analyze(ctx context.Context, doc *doctree.Document, sections []doctree.Section) (classify.Classification, extract.Metadata, error) {
	text := structure.Text(sections)
	title := ""
	for _, s := range sections {
		if s.Kind == doctree.KindHeader && s.Title != "" {
			title = s.Title
			break
		}
	}

	var (
		cls  classify.Classification
		meta extract.Metadata
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer recoverInto(&err, "classify")
		cls = c.classifier.Classify(text, doc.Filename, title)
		return nil
	})
	g.Go(func() (err error) {
		defer recoverInto(&err, "extract")
		meta = c.extractor.Extract(text, doc.Filename)
		return nil
	})
	if err := g.Wait(); err != nil {
		return classify.Classification{}, extract.Metadata{}, err
	}
	return cls, meta, nil
}

func recoverInto(err *error, stage string) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("%s: panic: %v", stage, p)
	}
}

// record writes the cache entry and registers the version. Store failures
// are noted on the result and never change its status.
func (c *Coordinator) record(ctx context.Context, log *slog.Logger, doc *doctree.Document, meta extract.Metadata, cls classify.Classification, chunks int, res *ProcessingResult) {
	if c.cache != nil {
		unlock := c.locks.Lock(doc.Key())
		err := c.cache.PutCache(ctx, store.CacheEntry{
			Path:         doc.Key(),
			Hash:         res.FileHash,
			Timestamp:    time.Now(),
			ChunkCount:   chunks,
			DocumentType: string(cls.DocumentType),
			TaxCategory:  string(cls.TaxCategory),
		})
		unlock()
		if err != nil {
			log.Error("cache write failed", "error", err)
			res.note("cache: write: %s", err)
		}
	}

	if c.versions != nil && res.UpdateStatus != versioning.StatusUnchanged {
		if _, err := c.versions.Register(ctx, doc, meta, string(cls.DocumentType)); err != nil {
			log.Error("version register failed", "error", err)
			res.note("cache: version: %s", err)
		}
	}
}
