package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_AttemptBudgets(t *testing.T) {
	policy := DefaultRetryPolicy()

	// 429 allows five total attempts.
	for attempt := 1; attempt < 5; attempt++ {
		assert.True(t, policy.Retryable(429, attempt), "attempt %d", attempt)
	}
	assert.False(t, policy.Retryable(429, 5))

	// 408 allows three total attempts.
	assert.True(t, policy.Retryable(408, 1))
	assert.True(t, policy.Retryable(408, 2))
	assert.False(t, policy.Retryable(408, 3))

	// Statuses outside the map are terminal.
	assert.False(t, policy.Retryable(500, 1))
	assert.False(t, policy.Retryable(200, 1))
}

func TestExponentialBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, ExponentialBackoff(1))
	assert.Equal(t, 4*time.Second, ExponentialBackoff(2))
	assert.Equal(t, 8*time.Second, ExponentialBackoff(3))
}

func TestRetryPolicy_SleepCancellable(t *testing.T) {
	policy := DefaultRetryPolicy()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- policy.Sleep(ctx, 3) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Sleep did not return promptly after cancellation")
	}
}

func TestRetryPolicy_SleepCompletes(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: map[int]int{429: 5},
		Backoff:     func(int) time.Duration { return time.Millisecond },
	}
	require.NoError(t, policy.Sleep(context.Background(), 1))
}
