package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// fakeClock records requested sleeps and returns immediately.
type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"invalid api key", errors.New("401 invalid_api_key"), ClassNonRetryable},
		{"anthropic auth error", errors.New("authentication_error: invalid x-api-key"), ClassNonRetryable},
		{"quota exhausted", errors.New("insufficient_quota: plan limit reached"), ClassNonRetryable},
		{"context canceled", context.Canceled, ClassNonRetryable},
		{"deadline exceeded", context.DeadlineExceeded, ClassNonRetryable},
		{"wrapped cancellation", fmt.Errorf("call failed: %w", context.Canceled), ClassNonRetryable},
		{"rate limit", errors.New("429 rate_limit_error"), ClassRateLimited},
		{"gemini resource exhausted", errors.New("RESOURCE_EXHAUSTED: quota exceeded"), ClassRateLimited},
		{"server error", errors.New("500 internal server error"), ClassRetryable},
		{"network error", errors.New("connection reset by peer"), ClassRetryable},
		{"empty response", &interfaces.EmptyResponseError{Model: "claude-sonnet-4-5"}, ClassRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestNext_RateLimitUsesFallbackImmediately(t *testing.T) {
	policy := models.NewRetryPolicy(3, 2*time.Second)

	tr := Next(policy, 0, errors.New("429 rate_limit_error"), true, false)
	assert.Equal(t, StateRetrying, tr.State)
	assert.True(t, tr.UseFallback)
	assert.Zero(t, tr.Delay, "fallback attempt must not wait")
}

func TestNext_RateLimitWithoutFallbackBacksOff(t *testing.T) {
	policy := models.NewRetryPolicy(3, 2*time.Second)

	// No fallback configured.
	tr := Next(policy, 0, errors.New("429 rate_limit_error"), false, false)
	assert.Equal(t, StateRetrying, tr.State)
	assert.False(t, tr.UseFallback)
	assert.Equal(t, 2*time.Second, tr.Delay)

	// Fallback already burned.
	tr = Next(policy, 1, errors.New("429 rate_limit_error"), true, true)
	assert.Equal(t, StateRetrying, tr.State)
	assert.False(t, tr.UseFallback)
	assert.Equal(t, 4*time.Second, tr.Delay)
}

func TestNext_BackoffDoubles(t *testing.T) {
	policy := models.NewRetryPolicy(3, 2*time.Second)
	err := errors.New("503 overloaded")

	expected := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for attempt, want := range expected {
		tr := Next(policy, attempt, err, false, false)
		require.Equal(t, StateRetrying, tr.State, "attempt %d", attempt)
		assert.Equal(t, want, tr.Delay, "attempt %d", attempt)
	}

	tr := Next(policy, 3, err, false, false)
	assert.Equal(t, StateFailedExhausted, tr.State)
}

func TestExecute_SucceedsAfterTransientFailures(t *testing.T) {
	policy := models.NewRetryPolicy(3, 2*time.Second)
	clock := &fakeClock{}
	calls := 0

	resp, err := execute(context.Background(), policy, clock, false, func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error) {
		calls++
		if calls <= 2 {
			return nil, errors.New("502 bad gateway")
		}
		return &interfaces.ModelResponse{Content: "[]"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, policy.TotalAttempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, clock.sleeps)
}

func TestExecute_NonRetryableStopsAfterOneCall(t *testing.T) {
	policy := models.NewRetryPolicy(3, 2*time.Second)
	clock := &fakeClock{}
	calls := 0

	_, err := execute(context.Background(), policy, clock, true, func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error) {
		calls++
		return nil, errors.New("authentication_error: invalid x-api-key")
	})

	require.Error(t, err)
	var nonRetryable *interfaces.ModelNonRetryableError
	require.ErrorAs(t, err, &nonRetryable)
	assert.Equal(t, "invalid_api_key", nonRetryable.Kind)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.sleeps)
}

func TestExecute_RateLimitSwitchesToFallbackWithoutSleeping(t *testing.T) {
	policy := models.NewRetryPolicy(3, 2*time.Second)
	clock := &fakeClock{}
	var fallbackFlags []bool

	resp, err := execute(context.Background(), policy, clock, true, func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error) {
		fallbackFlags = append(fallbackFlags, useFallback)
		if !useFallback {
			return nil, errors.New("429 rate_limit_error")
		}
		return &interfaces.ModelResponse{Content: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []bool{false, true}, fallbackFlags)
	assert.Empty(t, clock.sleeps, "fallback switch must be immediate")
}

func TestExecute_ExhaustionReportsAttempts(t *testing.T) {
	policy := models.NewRetryPolicy(2, time.Second)
	clock := &fakeClock{}
	calls := 0

	_, err := execute(context.Background(), policy, clock, false, func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error) {
		calls++
		return nil, errors.New("503 overloaded")
	})

	require.Error(t, err)
	var transient *interfaces.ModelTransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts, "maxRetries=2 means 3 total attempts")
	assert.Equal(t, 3, calls)
}

func TestExecute_CanceledContextAbortsBackoff(t *testing.T) {
	policy := models.NewRetryPolicy(3, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := execute(ctx, policy, &fakeClock{}, false, func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error) {
		calls++
		cancel()
		return nil, errors.New("503 overloaded")
	})

	require.Error(t, err)
	var nonRetryable *interfaces.ModelNonRetryableError
	require.ErrorAs(t, err, &nonRetryable)
	assert.Equal(t, "aborted", nonRetryable.Kind)
	assert.Equal(t, 1, calls)
}
