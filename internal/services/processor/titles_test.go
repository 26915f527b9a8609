package processor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// scriptedClient returns canned responses in call order.
type scriptedClient struct {
	calls     int32
	responses []func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error)
}

func (c *scriptedClient) Generate(ctx context.Context, req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
	n := int(atomic.AddInt32(&c.calls, 1)) - 1
	if n >= len(c.responses) {
		return nil, errors.New("unexpected extra call")
	}
	return c.responses[n](req)
}

func (c *scriptedClient) Close() error { return nil }

func drafts(descriptions ...string) []models.ObligationDraft {
	out := make([]models.ObligationDraft, len(descriptions))
	for i, d := range descriptions {
		out[i] = models.ObligationDraft{Description: d}
	}
	return out
}

func usage(total int) models.TokenUsage {
	return models.TokenUsage{InputTokens: total / 2, OutputTokens: total - total/2, TotalTokens: total}
}

func TestGenerateTitles_EmptyInputMakesNoCalls(t *testing.T) {
	client := &scriptedClient{}
	svc := NewTitleService(client, arbor.NewLogger())

	titles, u, err := svc.GenerateTitles(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, titles)
	assert.Zero(t, u.TotalTokens)
	assert.Zero(t, client.calls)
}

func TestGenerateTitles_SingleObligationSingleCall(t *testing.T) {
	client := &scriptedClient{responses: []func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error){
		func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			assert.Equal(t, models.ModelTierLight, req.Tier, "titles use the light tier")
			return &interfaces.ModelResponse{Content: "Monitor emissions weekly.", Usage: usage(20)}, nil
		},
	}}
	svc := NewTitleService(client, arbor.NewLogger())

	titles, u, err := svc.GenerateTitles(context.Background(), drafts("The operator shall monitor emissions."))

	require.NoError(t, err)
	require.Len(t, titles, 1)
	assert.Equal(t, "Monitor emissions weekly", titles[0], "trailing punctuation stripped")
	assert.Equal(t, 20, u.TotalTokens)
	assert.EqualValues(t, 1, client.calls)
}

func TestGenerateTitles_BatchUsesOneCall(t *testing.T) {
	client := &scriptedClient{responses: []func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error){
		func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			assert.Contains(t, req.Prompt, "3 obligations")
			return &interfaces.ModelResponse{
				Content: `["Monitor emissions", "Retain records", "Notify the agency"]`,
				Usage:   usage(60),
			}, nil
		},
	}}
	svc := NewTitleService(client, arbor.NewLogger())

	titles, u, err := svc.GenerateTitles(context.Background(), drafts("a", "b", "c"))

	require.NoError(t, err)
	assert.Equal(t, []string{"Monitor emissions", "Retain records", "Notify the agency"}, titles)
	assert.Equal(t, 60, u.TotalTokens)
	assert.EqualValues(t, 1, client.calls)
}

func TestGenerateTitles_BatchFailureFallsBackPerObligation(t *testing.T) {
	perObligation := func(title string) func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			return &interfaces.ModelResponse{Content: title, Usage: usage(10)}, nil
		}
	}
	client := &scriptedClient{responses: []func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error){
		// Batch attempt returns a count mismatch.
		func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			return &interfaces.ModelResponse{Content: `["only one title"]`, Usage: usage(30)}, nil
		},
		perObligation("First title"),
		perObligation("Second title"),
		perObligation("Third title"),
	}}
	svc := NewTitleService(client, arbor.NewLogger())

	titles, u, err := svc.GenerateTitles(context.Background(), drafts("a", "b", "c"))

	require.NoError(t, err)
	assert.Equal(t, []string{"First title", "Second title", "Third title"}, titles)
	assert.EqualValues(t, 4, client.calls, "one batch attempt plus one call per obligation")
	assert.Equal(t, 60, u.TotalTokens, "batch usage still counts")
}

func TestGenerateTitles_FallbackCallFailurePropagates(t *testing.T) {
	client := &scriptedClient{responses: []func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error){
		func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			return nil, errors.New("batch failed")
		},
		func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			return &interfaces.ModelResponse{Content: "First title", Usage: usage(10)}, nil
		},
		func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			return nil, errors.New("provider down")
		},
	}}
	svc := NewTitleService(client, arbor.NewLogger())

	_, _, err := svc.GenerateTitles(context.Background(), drafts("a", "b"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "obligation 2")
}

func TestCleanTitle(t *testing.T) {
	assert.Equal(t, "Monitor emissions", cleanTitle(`"Monitor emissions."`))
	long := strings.Repeat("word ", 30)
	assert.LessOrEqual(t, len(cleanTitle(long)), 80)
}
