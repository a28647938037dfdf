package indexer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttled rate-limits pushes to the wrapped indexer and honours the
// Retry-After hint of a rejected push before sending the next one.
type Throttled struct {
	next    Indexer
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// Throttle wraps next with a token bucket of perSec pushes per second. A
// non-positive perSec disables the bucket but keeps Retry-After handling.
func Throttle(next Indexer, perSec float64, burst int) *Throttled {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) Limits() Limits { return t.next.Limits() }

func (t *Throttled) Push(ctx context.Context, records []Record) error {
	t.mu.Lock()
	retryAt := t.retryAt
	t.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	err := t.next.Push(ctx, records)
	var re *RetryableError
	if errors.As(err, &re) && re.RetryAfter > 0 {
		t.mu.Lock()
		if at := time.Now().Add(re.RetryAfter); at.After(t.retryAt) {
			t.retryAt = at
		}
		t.mu.Unlock()
	}
	return err
}
