package util

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy retries a startup dependency check with exponential backoff.
type RetryPolicy struct {
	Operation  string // name used in logs and errors
	MaxRetries int
	BaseDelay  time.Duration // doubled after every failed attempt; 1s when zero
}

// Do calls fn until it succeeds, the retries are exhausted or ctx is done.
// Every failed attempt is logged with the operation name.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			if attempt > 0 {
				slog.Info("Operation succeeded after retry", "operation", p.Operation, "attempt", attempt+1)
			}
			return nil
		}
		if attempt == p.MaxRetries {
			break
		}

		slog.Warn("Operation failed, retrying", "operation", p.Operation, "attempt", attempt+1, "wait", delay, "error", lastErr)
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", p.Operation, p.MaxRetries+1, lastErr)
}
