package pipeline

import (
	"context"
	"fmt"

	"github.com/dgallion1/regingest/internal/classify"
	"github.com/dgallion1/regingest/internal/doctree"
	"github.com/dgallion1/regingest/internal/extract"
	"github.com/dgallion1/regingest/internal/structure"
)

// Inspection is everything the pipeline derives from one file short of
// indexing it.
type Inspection struct {
	Document       *doctree.Document       `json:"-"`
	Sections       []doctree.Section       `json:"sections"`
	Classification classify.Classification `json:"classification"`
	Metadata       extract.Metadata        `json:"metadata"`
	Chunks         []doctree.Chunk         `json:"chunks"`
}

// Inspect loads, parses, analyzes and chunks path without touching the
// cache, the version store or the indexer.
func (c *Coordinator) Inspect(ctx context.Context, path string) (Inspection, error) {
	doc, err := c.loader.Load(ctx, path)
	if err != nil {
		return Inspection{}, fmt.Errorf("load: %w", err)
	}
	return c.InspectDocument(ctx, doc)
}

// InspectDocument is Inspect for an already loaded document.
func (c *Coordinator) InspectDocument(ctx context.Context, doc *doctree.Document) (Inspection, error) {
	sections, err := structure.Parse(doc.Pages)
	if err != nil {
		return Inspection{}, fmt.Errorf("parse: %w", err)
	}
	cls, meta, err := c.analyze(ctx, doc, sections)
	if err != nil {
		return Inspection{}, fmt.Errorf("analyze: %w", err)
	}
	return Inspection{
		Document:       doc,
		Sections:       sections,
		Classification: cls,
		Metadata:       meta,
		Chunks:         c.chunker.Chunk(doc.Filename, sections),
	}, nil
}
