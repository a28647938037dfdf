package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/fault"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig configures the Weaviate sink.
type WeaviateConfig struct {
	Host   string // host[:port], optionally prefixed with http:// or https://
	APIKey string
	Class  string
	Limits Limits
}

// Weaviate writes records as objects of one class through the batch API.
// Object IDs are the record IDs, so re-pushing overwrites.
type Weaviate struct {
	client *weaviate.Client
	class  string
	limits Limits
}

// chunkClass mirrors Record.Properties.
func chunkClass(name string) *models.Class {
	text := []string{"text"}
	textArr := []string{"text[]"}
	intT := []string{"int"}
	boolT := []string{"boolean"}
	return &models.Class{
		Class: name,
		Properties: []*models.Property{
			{Name: "content", DataType: text},
			{Name: "sourceFile", DataType: text},
			{Name: "chunkIndex", DataType: intT},
			{Name: "chunkType", DataType: text},
			{Name: "sectionNumber", DataType: text},
			{Name: "sectionTitle", DataType: text},
			{Name: "pageStart", DataType: intT},
			{Name: "pageEnd", DataType: intT},
			{Name: "hasTable", DataType: boolT},
			{Name: "hasList", DataType: boolT},
			{Name: "hasTaxRate", DataType: boolT},
			{Name: "title", DataType: text},
			{Name: "documentType", DataType: text},
			{Name: "taxCategory", DataType: text},
			{Name: "subType", DataType: text},
			{Name: "confidence", DataType: []string{"number"}},
			{Name: "yearsOfAssessment", DataType: textArr},
			{Name: "publicationDate", DataType: text},
			{Name: "lastUpdated", DataType: text},
			{Name: "effectiveDate", DataType: text},
			{Name: "version", DataType: text},
			{Name: "taxRatesMentioned", DataType: textArr},
			{Name: "reliefsMentioned", DataType: textArr},
			{Name: "actReferences", DataType: textArr},
			{Name: "circularReferences", DataType: textArr},
			{Name: "documentId", DataType: text},
		},
		VectorIndexType: "hnsw",
	}
}

// NewWeaviate connects and creates the class if it does not exist.
func NewWeaviate(ctx context.Context, cfg WeaviateConfig) (*Weaviate, error) {
	scheme := "http"
	if strings.HasPrefix(cfg.Host, "https://") {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Host, "https://"), "http://")

	wcfg := weaviate.Config{Host: host, Scheme: scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	class := cfg.Class
	if class == "" {
		class = "RegulatoryChunk"
	}
	schema, err := client.Schema().Getter().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get schema: %w", weaviateErr(err))
	}
	exists := false
	for _, c := range schema.Classes {
		if c.Class == class {
			exists = true
			break
		}
	}
	if !exists {
		if err := client.Schema().ClassCreator().WithClass(chunkClass(class)).Do(ctx); err != nil {
			return nil, fmt.Errorf("create class %s: %w", class, weaviateErr(err))
		}
	}
	return &Weaviate{client: client, class: class, limits: cfg.Limits}, nil
}

func (w *Weaviate) Limits() Limits { return w.limits }

func (w *Weaviate) Push(ctx context.Context, records []Record) error {
	batcher := w.client.Batch().ObjectsBatcher()
	for _, r := range records {
		batcher = batcher.WithObjects(&models.Object{
			Class:      w.class,
			ID:         strfmt.UUID(r.ID),
			Properties: r.Properties(),
		})
	}

	resp, err := batcher.Do(ctx)
	if err != nil {
		return fmt.Errorf("batch insert %d objects: %w", len(records), weaviateErr(err))
	}

	var failed []string
	for _, obj := range resp {
		if obj.Result == nil || obj.Result.Errors == nil {
			continue
		}
		for _, e := range obj.Result.Errors.Error {
			if e != nil {
				failed = append(failed, fmt.Sprintf("%s: %s", obj.ID, e.Message))
			}
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("batch insert: %d object errors: %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// weaviateErr maps client errors onto the sink error contract.
func weaviateErr(err error) error {
	var werr *fault.WeaviateClientError
	if !errors.As(err, &werr) {
		return err
	}
	switch code := werr.StatusCode; {
	case code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: %v", ErrLimitExceeded, err)
	case code == http.StatusTooManyRequests || code >= 500 || !werr.IsUnexpectedStatusCode:
		return &RetryableError{StatusCode: code, Err: err}
	default:
		return err
	}
}
