package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/regingest/internal/indexer"
)

// push sends records in sub-batches within the indexer's limits. It returns
// the number indexed and one message per dropped record.
func (c *Coordinator) push(ctx context.Context, log *slog.Logger, records []indexer.Record) (int, []string) {
	var (
		pushed  int
		dropped []string
	)
	for _, batch := range indexer.Batches(records, c.indexer.Limits()) {
		n, failed := c.pushBatch(ctx, log, batch)
		pushed += n
		dropped = append(dropped, failed...)
	}
	log.Info("push complete", "indexed", pushed, "dropped", len(dropped))
	return pushed, dropped
}

// pushBatch retries transient failures, then halves the batch until single
// records remain. A single record that still fails is dropped.
func (c *Coordinator) pushBatch(ctx context.Context, log *slog.Logger, batch []indexer.Record) (int, []string) {
	err := c.pushWithRetry(ctx, log, batch)
	if err == nil {
		return len(batch), nil
	}
	if ctx.Err() != nil || len(batch) == 1 {
		out := make([]string, len(batch))
		for i, r := range batch {
			out[i] = fmt.Sprintf("chunk %d: %s", r.Chunk.Index, err)
		}
		log.Error("dropping chunks", "count", len(batch), "error", err)
		return 0, out
	}

	log.Warn("push failed, splitting batch", "size", len(batch), "error", err)
	mid := len(batch) / 2
	n1, d1 := c.pushBatch(ctx, log, batch[:mid])
	n2, d2 := c.pushBatch(ctx, log, batch[mid:])
	return n1 + n2, append(d1, d2...)
}

func (c *Coordinator) pushWithRetry(ctx context.Context, log *slog.Logger, batch []indexer.Record) error {
	for attempt := 0; ; attempt++ {
		err := c.indexer.Push(ctx, batch)
		if err == nil || !indexer.IsRetryable(err) || attempt+1 >= MaxRetries {
			return err
		}
		log.Warn("retryable push error", "attempt", attempt, "size", len(batch), "error", err)
		select {
		case <-time.After(c.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
