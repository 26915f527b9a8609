package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// State is a node in the retry state machine.
type State string

const (
	StatePending            State = "pending"
	StateCalling            State = "calling"
	StateRetrying           State = "retrying"
	StateSucceeded          State = "succeeded"
	StateFailedNonRetryable State = "failed_non_retryable"
	StateFailedExhausted    State = "failed_exhausted"
)

// ErrorClass buckets a model API failure for the transition function.
type ErrorClass string

const (
	// ClassNonRetryable: bad credentials, exhausted quota, or an aborted
	// call. Propagated immediately, no further attempts.
	ClassNonRetryable ErrorClass = "non_retryable"

	// ClassRateLimited: the provider rejected the call for rate. Triggers
	// an immediate attempt on the fallback credential instead of a timed
	// backoff.
	ClassRateLimited ErrorClass = "rate_limited"

	// ClassRetryable: everything else (network, 5xx, empty responses).
	ClassRetryable ErrorClass = "retryable"
)

// nonRetryableMarkers identify credential and quota failures in provider
// error strings.
var nonRetryableMarkers = []string{
	"invalid_api_key",
	"invalid x-api-key",
	"authentication_error",
	"permission_error",
	"insufficient_quota",
	"billing",
}

// rateLimitMarkers identify rate rejections.
var rateLimitMarkers = []string{
	"rate_limit_exceeded",
	"rate_limit_error",
	"429",
	"resource_exhausted",
}

// Classify buckets an error for the transition function. Context
// cancellation and deadline expiry are aborts: non-retryable by definition.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassRetryable
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassNonRetryable
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetryableMarkers {
		if strings.Contains(msg, marker) {
			return ClassNonRetryable
		}
	}
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return ClassRateLimited
		}
	}
	return ClassRetryable
}

// classifyKind maps an error to the failure kind reported in
// ModelNonRetryableError.
func classifyKind(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "aborted"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient_quota") || strings.Contains(msg, "billing"):
		return "insufficient_quota"
	default:
		return "invalid_api_key"
	}
}

// Transition is the outcome of one failed attempt.
type Transition struct {
	State       State
	Delay       time.Duration
	UseFallback bool
}

// Next is the pure transition function of the retry state machine. attempt
// is 0-based; fallbackAvailable and fallbackUsed describe the fallback
// credential state of this invocation.
func Next(policy *models.RetryPolicy, attempt int, err error, fallbackAvailable, fallbackUsed bool) Transition {
	switch Classify(err) {
	case ClassNonRetryable:
		return Transition{State: StateFailedNonRetryable}

	case ClassRateLimited:
		if fallbackAvailable && !fallbackUsed {
			// Immediate attempt on the alternate key, no timed backoff.
			return Transition{State: StateRetrying, UseFallback: true}
		}
		// No fallback left: fall through to timed backoff.
		fallthrough

	default:
		if attempt >= policy.MaxRetries {
			return Transition{State: StateFailedExhausted}
		}
		return Transition{State: StateRetrying, Delay: policy.DelayFor(attempt)}
	}
}

// Clock abstracts backoff sleeps so the retry loop is testable without real
// timers. Sleep returns the context error if the caller aborts mid-delay.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// attemptFunc performs one provider call. useFallback selects the alternate
// credential.
type attemptFunc func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error)

// execute drives the state machine: Pending -> Calling -> {Succeeded,
// Retrying, FailedNonRetryable, FailedExhausted}. The policy instance is
// owned by this invocation; attempt counters never leak across requests.
func execute(ctx context.Context, policy *models.RetryPolicy, clock Clock, fallbackAvailable bool, fn attemptFunc) (*interfaces.ModelResponse, error) {
	useFallback := false
	fallbackUsed := false
	var lastErr error

	for attempt := 0; ; attempt++ {
		policy.TotalAttempts++
		resp, err := fn(ctx, useFallback)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		tr := Next(policy, attempt, err, fallbackAvailable, fallbackUsed)
		switch tr.State {
		case StateFailedNonRetryable:
			return nil, &interfaces.ModelNonRetryableError{Kind: classifyKind(err), Err: err}

		case StateFailedExhausted:
			return nil, &interfaces.ModelTransientError{Attempts: policy.TotalAttempts, Err: lastErr}

		case StateRetrying:
			if tr.UseFallback {
				useFallback = true
				fallbackUsed = true
				continue
			}
			if sleepErr := clock.Sleep(ctx, tr.Delay); sleepErr != nil {
				return nil, &interfaces.ModelNonRetryableError{Kind: "aborted", Err: sleepErr}
			}
		}
	}
}
