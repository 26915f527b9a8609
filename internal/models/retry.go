package models

import (
	"time"
)

// RetryPolicy is attached per model call. Each invocation gets its own
// instance so that attempt counters never leak across concurrent requests.
type RetryPolicy struct {
	MaxRetries    int             `json:"max_retries"`
	RetryDelays   []time.Duration `json:"retry_delays"`
	TotalAttempts int             `json:"total_attempts"`
}

// NewRetryPolicy builds a policy with exponential delays starting at
// initial (2s, 4s, 8s, ... by default).
func NewRetryPolicy(maxRetries int, initial time.Duration) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if initial <= 0 {
		initial = 2 * time.Second
	}
	delays := make([]time.Duration, maxRetries)
	d := initial
	for i := range delays {
		delays[i] = d
		d *= 2
	}
	return &RetryPolicy{
		MaxRetries:  maxRetries,
		RetryDelays: delays,
	}
}

// DelayFor returns the backoff before retry attempt n (0-based). The last
// configured delay is reused when n runs past the table.
func (p *RetryPolicy) DelayFor(n int) time.Duration {
	if len(p.RetryDelays) == 0 {
		return 0
	}
	if n >= len(p.RetryDelays) {
		return p.RetryDelays[len(p.RetryDelays)-1]
	}
	return p.RetryDelays[n]
}
