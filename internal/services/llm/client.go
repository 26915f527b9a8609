// Package llm implements the model client: provider dispatch, retry with
// exponential backoff, API-key fallback, and size-scaled timeouts.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// providerCaller is the per-provider call surface behind the client.
type providerCaller interface {
	call(ctx context.Context, model string, req *interfaces.ModelRequest, useFallback bool) (*interfaces.ModelResponse, error)
	modelFor(tier models.ModelTier) string
	fallbackAvailable() bool
}

// Client implements interfaces.ModelClient. Constructed once at process
// start and shared; every Generate call gets a fresh RetryPolicy so retry
// state never crosses requests.
type Client struct {
	config  *common.LLMConfig
	logger  arbor.ILogger
	caller  providerCaller
	limiter *rate.Limiter
	clock   Clock

	initialBackoff time.Duration
	mediumTimeout  time.Duration
	largeTimeout   time.Duration
}

// Compile-time assertion
var _ interfaces.ModelClient = (*Client)(nil)

// NewClient builds the model client for the configured default provider.
func NewClient(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*Client, error) {
	var caller providerCaller
	switch cfg.LLM.DefaultProvider {
	case "claude":
		if cfg.Claude.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
		}
		caller = newClaudeCaller(&cfg.Claude, logger)
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key in config)")
		}
		geminiCaller, err := newGeminiCaller(ctx, &cfg.Gemini, logger)
		if err != nil {
			return nil, err
		}
		caller = geminiCaller
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLM.DefaultProvider)
	}

	rps := cfg.LLM.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	client := &Client{
		config:         &cfg.LLM,
		logger:         logger,
		caller:         caller,
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
		clock:          realClock{},
		initialBackoff: common.ParseDuration(cfg.LLM.InitialBackoff, 2*time.Second),
		mediumTimeout:  common.ParseDuration(cfg.LLM.MediumTimeout, 2*time.Minute),
		largeTimeout:   common.ParseDuration(cfg.LLM.LargeTimeout, 5*time.Minute),
	}

	logger.Debug().
		Str("provider", cfg.LLM.DefaultProvider).
		Int("max_retries", cfg.LLM.MaxRetries).
		Dur("medium_timeout", client.mediumTimeout).
		Dur("large_timeout", client.largeTimeout).
		Msg("Model client initialized")

	return client, nil
}

// GetDocumentTimeout returns the timeout tier for a document. Exposed for
// the orchestrator's accounting and for tests.
func (c *Client) GetDocumentTimeout(pageCount int, fileSize int64) time.Duration {
	return DocumentTimeout(pageCount, fileSize, c.mediumTimeout, c.largeTimeout)
}

// Generate performs one logical model call with retry, backoff, and
// fallback-credential handling per the configured policy.
func (c *Client) Generate(ctx context.Context, req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &interfaces.ModelNonRetryableError{Kind: "aborted", Err: err}
	}

	model := req.Model
	if model == "" {
		model = c.caller.modelFor(req.Tier)
	}

	timeout := c.GetDocumentTimeout(req.PageCount, req.FileSize)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	policy := models.NewRetryPolicy(c.config.MaxRetries, c.initialBackoff)

	start := time.Now()
	resp, err := execute(callCtx, policy, c.clock, c.caller.fallbackAvailable(), func(ctx context.Context, useFallback bool) (*interfaces.ModelResponse, error) {
		return c.caller.call(ctx, model, req, useFallback)
	})
	if err != nil {
		c.logger.Error().
			Str("model", model).
			Int("attempts", policy.TotalAttempts).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("Model call failed")
		return nil, err
	}

	c.logger.Debug().
		Str("model", model).
		Int("attempts", policy.TotalAttempts).
		Int("input_tokens", resp.Usage.InputTokens).
		Int("output_tokens", resp.Usage.OutputTokens).
		Dur("elapsed", time.Since(start)).
		Msg("Model call succeeded")

	return resp, nil
}

// Close releases provider resources.
func (c *Client) Close() error {
	return nil
}
