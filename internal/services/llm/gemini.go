package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"
	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// geminiCaller invokes the Google Gemini API. Gemini deployments run on a
// single key; there is no fallback credential.
type geminiCaller struct {
	config *common.GeminiConfig
	logger arbor.ILogger
	client *genai.Client
}

func newGeminiCaller(ctx context.Context, config *common.GeminiConfig, logger arbor.ILogger) (*geminiCaller, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &geminiCaller{
		config: config,
		logger: logger,
		client: client,
	}, nil
}

func (g *geminiCaller) fallbackAvailable() bool {
	return false
}

// modelFor maps a tier to the configured Gemini model.
func (g *geminiCaller) modelFor(tier models.ModelTier) string {
	if tier == models.ModelTierLight && g.config.LightModel != "" {
		return g.config.LightModel
	}
	return g.config.Model
}

// call performs one attempt against the Gemini API.
func (g *geminiCaller) call(ctx context.Context, model string, req *interfaces.ModelRequest, useFallback bool) (*interfaces.ModelResponse, error) {
	temp := req.Temperature
	if temp <= 0 {
		temp = g.config.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &interfaces.EmptyResponseError{Model: model}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, &interfaces.EmptyResponseError{Model: model}
	}

	finishReason := ""
	if resp.Candidates[0] != nil {
		finishReason = string(resp.Candidates[0].FinishReason)
	}

	inputTokens := 0
	outputTokens := 0
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &interfaces.ModelResponse{
		Content:      text,
		FinishReason: finishReason,
		Usage: models.TokenUsage{
			InputTokens:   inputTokens,
			OutputTokens:  outputTokens,
			TotalTokens:   inputTokens + outputTokens,
			Model:         model,
			EstimatedCost: EstimateCost(model, inputTokens, outputTokens),
		},
	}, nil
}
