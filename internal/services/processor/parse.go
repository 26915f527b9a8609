package processor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecocomply/extract/internal/models"
)

// parseObligations decodes the model's JSON array response. Models
// occasionally wrap output in markdown code fences or preamble text, so
// the parser locates the outermost array before unmarshalling.
func parseObligations(content string) ([]models.ObligationDraft, error) {
	cleaned := stripCodeFences(content)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in model response")
	}

	var drafts []models.ObligationDraft
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("failed to parse obligations JSON: %w", err)
	}

	for i := range drafts {
		if drafts[i].ConfidenceScore < 0 {
			drafts[i].ConfidenceScore = 0
		}
		if drafts[i].ConfidenceScore > 1 {
			drafts[i].ConfidenceScore = 1
		}
	}
	return drafts, nil
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
