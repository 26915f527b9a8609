package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

const titleSystemPrompt = "You write short display titles for compliance obligations. Titles are at most 80 characters, start with a verb where possible, and never end with punctuation."

// TitleService generates obligation titles on the light model tier. A
// single obligation gets one call; several get one batched prompt, with a
// per-obligation fallback when the batch response cannot be used.
type TitleService struct {
	client interfaces.ModelClient
	logger arbor.ILogger
}

var _ interfaces.TitleGenerator = (*TitleService)(nil)

func NewTitleService(client interfaces.ModelClient, logger arbor.ILogger) *TitleService {
	return &TitleService{client: client, logger: logger}
}

// GenerateTitles returns one title per obligation, in input order.
func (t *TitleService) GenerateTitles(ctx context.Context, obligations []models.ObligationDraft) ([]string, models.TokenUsage, error) {
	switch len(obligations) {
	case 0:
		return nil, models.TokenUsage{}, nil
	case 1:
		title, usage, err := t.generateOne(ctx, obligations[0])
		if err != nil {
			return nil, usage, err
		}
		return []string{title}, usage, nil
	}

	titles, usage, err := t.generateBatch(ctx, obligations)
	if err == nil {
		return titles, usage, nil
	}

	t.logger.Warn().
		Err(err).
		Int("count", len(obligations)).
		Msg("Batched title generation failed, falling back to per-obligation calls")

	// The batch attempt's usage still counts toward the extraction.
	titles = make([]string, len(obligations))
	for i, obligation := range obligations {
		title, callUsage, err := t.generateOne(ctx, obligation)
		usage.Add(callUsage)
		if err != nil {
			return nil, usage, fmt.Errorf("title generation failed for obligation %d: %w", i+1, err)
		}
		titles[i] = title
	}
	return titles, usage, nil
}

func (t *TitleService) generateOne(ctx context.Context, obligation models.ObligationDraft) (string, models.TokenUsage, error) {
	resp, err := t.client.Generate(ctx, &interfaces.ModelRequest{
		System: titleSystemPrompt,
		Prompt: fmt.Sprintf("Write a title for this obligation. Respond with the title only.\n\n%s", obligation.Description),
		Tier:   models.ModelTierLight,
	})
	if err != nil {
		return "", models.TokenUsage{}, err
	}
	return cleanTitle(resp.Content), resp.Usage, nil
}

func (t *TitleService) generateBatch(ctx context.Context, obligations []models.ObligationDraft) ([]string, models.TokenUsage, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a title for each of these %d obligations. Respond ONLY with a JSON array of %d strings in the same order.\n", len(obligations), len(obligations))
	for i, obligation := range obligations {
		fmt.Fprintf(&b, "\n%d. %s", i+1, obligation.Description)
	}

	resp, err := t.client.Generate(ctx, &interfaces.ModelRequest{
		System: titleSystemPrompt,
		Prompt: b.String(),
		Tier:   models.ModelTierLight,
	})
	if err != nil {
		return nil, models.TokenUsage{}, err
	}

	titles, err := parseTitleArray(resp.Content, len(obligations))
	if err != nil {
		return nil, resp.Usage, err
	}
	return titles, resp.Usage, nil
}

func parseTitleArray(content string, want int) ([]string, error) {
	cleaned := stripCodeFences(content)
	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array found in title response")
	}

	var titles []string
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &titles); err != nil {
		return nil, fmt.Errorf("failed to parse titles JSON: %w", err)
	}
	if len(titles) != want {
		return nil, fmt.Errorf("expected %d titles, got %d", want, len(titles))
	}
	for i := range titles {
		titles[i] = cleanTitle(titles[i])
	}
	return titles, nil
}

func cleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"`)
	title = strings.TrimRight(title, ".")
	if len(title) > 80 {
		title = strings.TrimSpace(title[:80])
	}
	return title
}
