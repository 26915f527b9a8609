package llm

import (
	"strings"
)

// modelPricing holds USD prices per million tokens.
type modelPricing struct {
	inputPerMTok  float64
	outputPerMTok float64
}

// pricingTable maps model-name prefixes to prices. Longest matching prefix
// wins; unknown models fall back to defaultPricing so cost is never
// negative and never silently zero.
var pricingTable = map[string]modelPricing{
	"claude-sonnet":     {3.00, 15.00},
	"claude-3-5-haiku":  {0.80, 4.00},
	"claude-opus":       {15.00, 75.00},
	"gemini-2.5-pro":    {1.25, 10.00},
	"gemini-2.5-flash":  {0.30, 2.50},
}

var defaultPricing = modelPricing{3.00, 15.00}

// EstimateCost computes the USD cost of a call from token counts. Negative
// counts are clamped to zero so the result is always >= 0.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}

	pricing := defaultPricing
	bestLen := 0
	for prefix, p := range pricingTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			pricing = p
			bestLen = len(prefix)
		}
	}

	return float64(inputTokens)/1_000_000*pricing.inputPerMTok +
		float64(outputTokens)/1_000_000*pricing.outputPerMTok
}
