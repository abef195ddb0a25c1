package external

import (
	"context"
	"time"
)

// RetryPolicy decides which HTTP statuses are retried, how many total
// attempts each one is allowed, and how long to back off between attempts.
// It is shared between the resolver client and the bulk dataset downloader.
type RetryPolicy struct {
	// MaxAttempts maps an HTTP status code to the total number of attempts
	// (first try included) permitted for it. Statuses absent from the map
	// are terminal.
	MaxAttempts map[int]int

	// Backoff returns the delay before attempt n+1, given that attempt n
	// (1-based) just failed.
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy mirrors the resolution service's documented limits:
// 429 Too Many Requests gets five attempts, 408 Request Timeout three, both
// with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: map[int]int{
			429: 5,
			408: 3,
		},
		Backoff: ExponentialBackoff,
	}
}

// ExponentialBackoff waits 2^attempt seconds.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Retryable reports whether status is worth another attempt after `attempt`
// attempts have already been made.
func (p RetryPolicy) Retryable(status, attempt int) bool {
	max, ok := p.MaxAttempts[status]
	return ok && attempt < max
}

// Sleep blocks for the backoff delay after the given attempt, returning
// early with the context error if the caller is cancelled. A cancellation
// must short-circuit the retry loop, not force one more attempt.
func (p RetryPolicy) Sleep(ctx context.Context, attempt int) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = ExponentialBackoff
	}
	timer := time.NewTimer(backoff(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
