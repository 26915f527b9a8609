package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
	"github.com/ecocomply/extract/internal/services/complexity"
	"github.com/ecocomply/extract/internal/services/segmenter"
	"github.com/ecocomply/extract/internal/services/textfilter"
)

// fakeModelClient answers extraction prompts with per-segment obligations
// derived from the segment content, so merge order is observable.
type fakeModelClient struct {
	mu      sync.Mutex
	calls   int32
	delays  map[string]time.Duration
	respond func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error)
}

func (f *fakeModelClient) Generate(ctx context.Context, req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delays != nil {
		for marker, delay := range f.delays {
			if strings.Contains(req.Prompt, marker) {
				time.Sleep(delay)
			}
		}
	}
	return f.respond(req)
}

func (f *fakeModelClient) Close() error { return nil }

func (f *fakeModelClient) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

// fakeMatcher reports a fixed match result.
type fakeMatcher struct {
	result *models.RuleMatchResult
	err    error
}

func (f *fakeMatcher) Match(ctx context.Context, filteredText string, hints models.DocumentHints) (*models.RuleMatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &models.RuleMatchResult{LibraryVersion: "v1"}, nil
}

func (f *fakeMatcher) LibraryVersion() string { return "v1" }

// fakeCache is an in-memory ExtractionCache.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	stores  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*models.CacheEntry)}
}

func (f *fakeCache) Lookup(ctx context.Context, key string) (*models.CacheEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[key]
	return entry, ok
}

func (f *fakeCache) Store(ctx context.Context, key string, entry *models.CacheEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.Key = key
	f.entries[key] = entry
	f.stores++
}

// blockedBudget always refuses.
type blockedBudget struct{}

func (blockedBudget) ExtractionAllowed(ctx context.Context, companyID string) error {
	return interfaces.ErrExtractionBlocked
}

// unknownHints is a document type the pipeline does not support.
type unknownHints struct{}

func (unknownHints) Type() models.DocumentType { return "building_consent" }
func (unknownHints) Regulator() string         { return "" }
func (unknownHints) PromptContext() string     { return "" }
func (unknownHints) ConditionPattern() string  { return "" }

func testConfig() *common.ExtractionConfig {
	return &common.ExtractionConfig{
		TokenBudget:           24000,
		MinTextLength:         200,
		RuleLibraryVersion:    "v1",
		RuleCoverageThreshold: 0.8,
		SegmentConcurrency:    3,
	}
}

func newTestService(cfg *common.ExtractionConfig, client interfaces.ModelClient, matcher interfaces.RuleMatcher, cacheImpl interfaces.ExtractionCache, budget interfaces.BudgetGate) *Service {
	logger := arbor.NewLogger()
	return NewService(
		cfg,
		nil, // extractor not needed for text-path tests
		textfilter.NewService(common.FilterConfig{}, logger),
		complexity.NewAnalyzer(logger),
		segmenter.NewService(logger),
		matcher,
		cacheImpl,
		client,
		nil, // title generation covered separately
		budget,
		logger,
	)
}

func permitHints(t *testing.T) models.DocumentHints {
	t.Helper()
	hints, err := models.HintsFor(models.DocTypeEnvironmentalPermit, "Environment Agency", nil)
	require.NoError(t, err)
	return hints
}

func obligationsJSON(t *testing.T, drafts ...models.ObligationDraft) string {
	t.Helper()
	data, err := json.Marshal(drafts)
	require.NoError(t, err)
	return string(data)
}

func TestExtractObligations_UnsupportedTypeFailsBeforeModelCall(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{Content: "[]"}, nil
	}}
	s := newTestService(testConfig(), client, &fakeMatcher{}, newFakeCache(), nil)

	_, err := s.ExtractObligations(context.Background(), "2.1 Monitor emissions.", unknownHints{}, interfaces.ExtractOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "building_consent")
	assert.Zero(t, client.callCount(), "no network call for unsupported types")
}

func TestExtractObligations_BlockedBudgetFailsBeforeModelCall(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{Content: "[]"}, nil
	}}
	s := newTestService(testConfig(), client, &fakeMatcher{}, newFakeCache(), blockedBudget{})

	_, err := s.ExtractObligations(context.Background(), "2.1 Monitor emissions.", permitHints(t), interfaces.ExtractOptions{CompanyID: "co-1"})

	require.ErrorIs(t, err, interfaces.ErrExtractionBlocked)
	assert.Zero(t, client.callCount())
}

func TestExtractObligations_CacheHitSkipsModel(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{
			Content: obligationsJSON(t, models.ObligationDraft{ConditionReference: "2.1", Title: "t", Description: "d"}),
		}, nil
	}}
	cacheImpl := newFakeCache()
	s := newTestService(testConfig(), client, &fakeMatcher{}, cacheImpl, nil)
	hints := permitHints(t)
	text := "2.1 The operator shall monitor emissions to air weekly."

	first, err := s.ExtractObligations(context.Background(), text, hints, interfaces.ExtractOptions{PageCount: 3})
	require.NoError(t, err)
	assert.True(t, first.UsedLLM)
	assert.False(t, first.Metadata.CacheHit)
	callsAfterFirst := client.callCount()
	require.Greater(t, callsAfterFirst, 0)

	second, err := s.ExtractObligations(context.Background(), text, hints, interfaces.ExtractOptions{PageCount: 3})
	require.NoError(t, err)
	assert.True(t, second.Metadata.CacheHit)
	assert.False(t, second.UsedLLM)
	assert.Equal(t, first.Obligations, second.Obligations)
	assert.Equal(t, callsAfterFirst, client.callCount(), "cache hit must not call the model")
}

// fakeExtractor returns canned document text without touching a real PDF.
type fakeExtractor struct {
	text  string
	pages int
}

func (f *fakeExtractor) Extract(ctx context.Context, doc *models.RawDocument) (*models.DocumentText, error) {
	return &models.DocumentText{Text: f.text, PageCount: f.pages, ExtractionMethod: models.ExtractionNative}, nil
}

func (f *fakeExtractor) Metadata(ctx context.Context, doc *models.RawDocument) (*models.DocumentMetadata, error) {
	return &models.DocumentMetadata{Filename: doc.Filename, PageCount: f.pages}, nil
}

func TestProcessDocument_TextFlowsIntoExtraction(t *testing.T) {
	extracted := "2.1 The operator shall monitor emissions to air weekly."
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{
			Content: obligationsJSON(t, models.ObligationDraft{ConditionReference: "2.1", Title: "t", Description: "d"}),
		}, nil
	}}
	logger := arbor.NewLogger()
	s := NewService(
		testConfig(),
		&fakeExtractor{text: extracted, pages: 4},
		textfilter.NewService(common.FilterConfig{}, logger),
		complexity.NewAnalyzer(logger),
		segmenter.NewService(logger),
		&fakeMatcher{},
		newFakeCache(),
		client,
		nil,
		nil,
		logger,
	)
	hints := permitHints(t)

	processed, err := s.ProcessDocument(context.Background(), []byte("%PDF-1.7 stub"), "permit.pdf", hints)
	require.NoError(t, err)
	assert.Equal(t, extracted, processed.Text)
	assert.Equal(t, 4, processed.Metadata.PageCount)

	result, err := s.ExtractObligations(context.Background(), processed.Text, hints, interfaces.ExtractOptions{
		PageCount: processed.Metadata.PageCount,
		Filename:  processed.Metadata.Filename,
	})
	require.NoError(t, err)
	require.Len(t, result.Obligations, 1)
	assert.Equal(t, "2.1", result.Obligations[0].ConditionReference)
}

func TestExtractObligations_CacheHitPreservesComplexity(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{
			Content: obligationsJSON(t, models.ObligationDraft{ConditionReference: "2.1", Title: "t", Description: "d"}),
		}, nil
	}}
	s := newTestService(testConfig(), client, &fakeMatcher{}, newFakeCache(), nil)
	hints := permitHints(t)
	// Naming two regulators forces the complex classification.
	text := "2.1 The operator shall report to the Environment Agency and to SEPA quarterly."

	first, err := s.ExtractObligations(context.Background(), text, hints, interfaces.ExtractOptions{PageCount: 3})
	require.NoError(t, err)
	require.Equal(t, models.ComplexityComplex, first.Complexity)

	second, err := s.ExtractObligations(context.Background(), text, hints, interfaces.ExtractOptions{PageCount: 3})
	require.NoError(t, err)
	require.True(t, second.Metadata.CacheHit)
	assert.Equal(t, models.ComplexityComplex, second.Complexity)
}

func TestExtractObligations_RuleCoverageSkipsModel(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{Content: "[]"}, nil
	}}
	matched := []models.ObligationDraft{
		{ConditionReference: "3.2", Title: "Retain compliance records", Category: "record_keeping", ConfidenceScore: 0.85},
	}
	matcher := &fakeMatcher{result: &models.RuleMatchResult{
		Obligations:    matched,
		Coverage:       0.92,
		LibraryVersion: "v1",
	}}
	s := newTestService(testConfig(), client, matcher, newFakeCache(), nil)

	result, err := s.ExtractObligations(context.Background(), "3.2 Records shall be kept for six years.", permitHints(t), interfaces.ExtractOptions{})

	require.NoError(t, err)
	assert.False(t, result.UsedLLM)
	assert.True(t, result.Metadata.RuleLibraryHit)
	assert.Equal(t, matched, result.Obligations)
	assert.Zero(t, client.callCount())
}

func TestExtractObligations_RulePathReportsAssessedComplexity(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{Content: "[]"}, nil
	}}
	matcher := &fakeMatcher{result: &models.RuleMatchResult{
		Obligations:    []models.ObligationDraft{{ConditionReference: "3.2", Title: "Retain compliance records"}},
		Coverage:       0.95,
		LibraryVersion: "v1",
	}}
	s := newTestService(testConfig(), client, matcher, newFakeCache(), nil)

	// Multi-regulator text classifies as complex even on the rule path.
	text := "3.2 Records shall be kept and made available to the Environment Agency and SEPA."
	result, err := s.ExtractObligations(context.Background(), text, permitHints(t), interfaces.ExtractOptions{PageCount: 3})

	require.NoError(t, err)
	assert.True(t, result.Metadata.RuleLibraryHit)
	assert.Equal(t, models.ComplexityComplex, result.Complexity)
	assert.Zero(t, client.callCount())
}

func TestExtractObligations_RuleFailureFallsBackToModel(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{
			Content: obligationsJSON(t, models.ObligationDraft{ConditionReference: "2.1", Title: "t", Description: "d"}),
		}, nil
	}}
	matcher := &fakeMatcher{err: &interfaces.RuleMatchError{Err: errors.New("library unavailable")}}
	s := newTestService(testConfig(), client, matcher, newFakeCache(), nil)

	result, err := s.ExtractObligations(context.Background(), "2.1 Monitor emissions weekly.", permitHints(t), interfaces.ExtractOptions{})

	require.NoError(t, err)
	assert.True(t, result.UsedLLM)
	assert.Greater(t, client.callCount(), 0)
}

func TestExtractObligations_SegmentMergePreservesDocumentOrder(t *testing.T) {
	// Three segments; the first is artificially slowest so completion order
	// is reversed relative to document order.
	var paragraphs []string
	for i := 1; i <= 3; i++ {
		paragraphs = append(paragraphs, fmt.Sprintf("MARKER-%d %s", i, strings.Repeat("condition text ", 30)))
	}
	text := strings.Join(paragraphs, "\n\n")

	client := &fakeModelClient{
		delays: map[string]time.Duration{
			"MARKER-1": 60 * time.Millisecond,
			"MARKER-2": 30 * time.Millisecond,
		},
		respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
			for i := 1; i <= 3; i++ {
				marker := fmt.Sprintf("MARKER-%d", i)
				if strings.Contains(req.Prompt, marker) {
					return &interfaces.ModelResponse{
						Content: fmt.Sprintf(`[{"condition_reference":"%d.1","title":"from segment %d","description":"d"}]`, i, i),
						Usage:   models.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
					}, nil
				}
			}
			return &interfaces.ModelResponse{Content: "[]"}, nil
		},
	}

	cfg := testConfig()
	cfg.TokenBudget = 120 // force one segment per paragraph
	s := newTestService(cfg, client, &fakeMatcher{}, newFakeCache(), nil)

	result, err := s.ExtractObligations(context.Background(), text, permitHints(t), interfaces.ExtractOptions{})

	require.NoError(t, err)
	require.Equal(t, 3, result.Metadata.SegmentCount)
	require.Len(t, result.Obligations, 3)
	for i, o := range result.Obligations {
		assert.Equal(t, fmt.Sprintf("%d.1", i+1), o.ConditionReference, "obligation %d out of order", i)
	}
	assert.Equal(t, 45, result.TokenUsage.TotalTokens, "usage must sum across segments")
}

func TestExtractObligations_SegmentFailureFailsExtraction(t *testing.T) {
	cacheImpl := newFakeCache()
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return nil, &interfaces.ModelTransientError{Attempts: 4, Err: errors.New("overloaded")}
	}}
	s := newTestService(testConfig(), client, &fakeMatcher{}, cacheImpl, nil)

	_, err := s.ExtractObligations(context.Background(), "2.1 Monitor emissions.", permitHints(t), interfaces.ExtractOptions{})

	require.Error(t, err)
	var pipelineErr *interfaces.PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, interfaces.StageModel, pipelineErr.Stage)
	assert.True(t, pipelineErr.Retryable)
	assert.Zero(t, cacheImpl.stores, "failed extraction must not be cached")
}

func TestExtractObligations_MalformedModelOutputFails(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{Content: "I could not find any obligations, sorry."}, nil
	}}
	s := newTestService(testConfig(), client, &fakeMatcher{}, newFakeCache(), nil)

	_, err := s.ExtractObligations(context.Background(), "2.1 Monitor emissions.", permitHints(t), interfaces.ExtractOptions{})

	require.Error(t, err)
	var pipelineErr *interfaces.PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, interfaces.StageMerge, pipelineErr.Stage)
}

func TestExtractObligations_CodeFencedJSONIsAccepted(t *testing.T) {
	client := &fakeModelClient{respond: func(req *interfaces.ModelRequest) (*interfaces.ModelResponse, error) {
		return &interfaces.ModelResponse{
			Content: "```json\n[{\"condition_reference\":\"2.1\",\"title\":\"Monitor\",\"description\":\"d\",\"confidence_score\":1.4}]\n```",
		}, nil
	}}
	s := newTestService(testConfig(), client, &fakeMatcher{}, newFakeCache(), nil)

	result, err := s.ExtractObligations(context.Background(), "2.1 Monitor emissions.", permitHints(t), interfaces.ExtractOptions{})

	require.NoError(t, err)
	require.Len(t, result.Obligations, 1)
	assert.Equal(t, 1.0, result.Obligations[0].ConfidenceScore, "confidence must clamp to [0,1]")
}

func TestSegmentDocument_Delegates(t *testing.T) {
	s := newTestService(testConfig(), &fakeModelClient{respond: nil}, &fakeMatcher{}, newFakeCache(), nil)

	segments := s.SegmentDocument("short text", 1000)
	require.Len(t, segments, 1)
	assert.Equal(t, "short text", segments[0])
}
