package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// claudeCaller invokes the Anthropic API. It holds a primary client and,
// when a fallback key is configured, an alternate client used after a rate
// limit rejection.
type claudeCaller struct {
	config      *common.ClaudeConfig
	logger      arbor.ILogger
	primary     anthropic.Client
	fallback    anthropic.Client
	hasFallback bool
}

func newClaudeCaller(config *common.ClaudeConfig, logger arbor.ILogger) *claudeCaller {
	caller := &claudeCaller{
		config:  config,
		logger:  logger,
		primary: anthropic.NewClient(option.WithAPIKey(config.APIKey)),
	}
	if config.FallbackAPIKey != "" {
		caller.fallback = anthropic.NewClient(option.WithAPIKey(config.FallbackAPIKey))
		caller.hasFallback = true
	}
	return caller
}

func (c *claudeCaller) fallbackAvailable() bool {
	return c.hasFallback
}

// modelFor maps a tier to the configured Claude model.
func (c *claudeCaller) modelFor(tier models.ModelTier) string {
	if tier == models.ModelTierLight && c.config.LightModel != "" {
		return c.config.LightModel
	}
	return c.config.Model
}

// call performs one attempt against the Anthropic API.
func (c *claudeCaller) call(ctx context.Context, model string, req *interfaces.ModelRequest, useFallback bool) (*interfaces.ModelResponse, error) {
	client := c.primary
	if useFallback && c.hasFallback {
		client = c.fallback
		c.logger.Warn().Str("model", model).Msg("Using fallback API key after rate limit")
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}

	temp := req.Temperature
	if temp <= 0 {
		temp = c.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if strings.TrimSpace(text.String()) == "" {
		return nil, &interfaces.EmptyResponseError{Model: model}
	}

	inputTokens := int(resp.Usage.InputTokens)
	outputTokens := int(resp.Usage.OutputTokens)

	return &interfaces.ModelResponse{
		Content:      text.String(),
		FinishReason: string(resp.StopReason),
		Usage: models.TokenUsage{
			InputTokens:   inputTokens,
			OutputTokens:  outputTokens,
			TotalTokens:   inputTokens + outputTokens,
			Model:         model,
			EstimatedCost: EstimateCost(model, inputTokens, outputTokens),
		},
	}, nil
}
