package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// HTTP pushes records as JSON to a retrieval service's ingest endpoint.
type HTTP struct {
	baseURL    string
	apiKey     string
	limits     Limits
	httpClient *http.Client
}

func NewHTTP(baseURL, apiKey string, limits Limits) *HTTP {
	return &HTTP{
		baseURL: baseURL,
		apiKey:  apiKey,
		limits:  limits,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *HTTP) Limits() Limits { return c.limits }

type pushRequest struct {
	Records []pushRecord `json:"records"`
}

type pushRecord struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// Push POSTs to {baseURL}/records. 413 maps to ErrLimitExceeded; 429, 5xx
// and transport failures are retryable.
func (c *HTTP) Push(ctx context.Context, records []Record) error {
	req := pushRequest{Records: make([]pushRecord, len(records))}
	for i, r := range records {
		req.Records[i] = pushRecord{ID: r.ID, Properties: r.Properties()}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/records", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &RetryableError{Err: fmt.Errorf("push records: %w", err)}
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusOK || code == http.StatusCreated || code == http.StatusNoContent:
		return nil
	case code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: status %d: %s", ErrLimitExceeded, code, readSnippet(resp.Body))
	case code == http.StatusTooManyRequests || code >= 500:
		return &RetryableError{
			StatusCode: code,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
			Err:        errors.New(readSnippet(resp.Body)),
		}
	default:
		return fmt.Errorf("push records: status %d: %s", code, readSnippet(resp.Body))
	}
}

// Close releases idle connections.
func (c *HTTP) Close() {
	c.httpClient.CloseIdleConnections()
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 1024))
	return string(b)
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
