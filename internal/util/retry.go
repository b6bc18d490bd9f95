package util

import (
	"context"
	"errors"
	"time"
)

// Backoff configures RetryWithBackoff.
type Backoff struct {
	// Initial delay before the second attempt. Doubles after each failure.
	Initial time.Duration
	// Max caps a single delay. Zero means no cap.
	Max time.Duration
	// Retryable reports whether err warrants another attempt. Nil retries everything.
	Retryable func(error) bool
}

// RetryWithBackoff calls fn up to maxTries times (at least once) until it
// succeeds, sleeping between attempts. It stops early when ctx is done, when
// fn returns a context error, or on errors that b.Retryable rejects.
func RetryWithBackoff[T any](
	ctx context.Context,
	maxTries int,
	b Backoff,
	fn func(context.Context) (T, error),
) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var zero T
	var lastErr error
	delay := b.Initial
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if b.Retryable != nil && !b.Retryable(err) {
			return zero, err
		}
		if i == maxTries-1 || delay <= 0 {
			continue
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return zero, lastErr
}
