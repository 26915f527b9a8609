package interfaces

import (
	"context"

	"github.com/ecocomply/extract/internal/models"
)

// ModelRequest is a provider-agnostic content generation request.
type ModelRequest struct {
	// System is the system instruction for the call.
	System string

	// Prompt is the user content.
	Prompt string

	// Tier selects the model class; the client maps it to a concrete
	// model name per provider.
	Tier models.ModelTier

	// Model overrides the tier mapping when non-empty.
	Model string

	// Temperature overrides the configured default when > 0.
	Temperature float32

	// MaxTokens overrides the configured default when > 0.
	MaxTokens int

	// PageCount and FileSize drive the timeout tier. A document receives
	// the large tier only when PageCount >= 50 AND FileSize >= 10MB.
	PageCount int
	FileSize  int64
}

// ModelResponse is the parsed outcome of a successful model call.
type ModelResponse struct {
	Content      string
	FinishReason string
	Usage        models.TokenUsage
}

// ModelClient invokes the external LLM with retry, exponential backoff, and
// API-key fallback. Constructed once at process start and shared; per-call
// state (retry counters, policies) is never shared between invocations.
type ModelClient interface {
	// Generate performs one logical model call. Failures are classified:
	// *ModelNonRetryableError propagates immediately, transient errors are
	// retried per policy, and exhaustion returns *ModelTransientError
	// wrapping the last underlying error. Empty content is a failure
	// (*EmptyResponseError), never a successful empty extraction.
	Generate(ctx context.Context, req *ModelRequest) (*ModelResponse, error)

	// Close releases provider resources.
	Close() error
}
