// Package processor orchestrates the extraction pipeline: parse, filter,
// cache lookup, rule matching, complexity routing, segmentation, model
// calls, and merge.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
	"github.com/ecocomply/extract/internal/services/cache"
	"github.com/ecocomply/extract/internal/services/complexity"
	"github.com/ecocomply/extract/internal/services/segmenter"
	"github.com/ecocomply/extract/internal/services/textfilter"
)

var validate = validator.New()

// Service implements the DocumentProcessor interface.
type Service struct {
	config    *common.ExtractionConfig
	extractor interfaces.TextExtractor
	filter    *textfilter.Service
	analyzer  *complexity.Analyzer
	segmenter *segmenter.Service
	matcher   interfaces.RuleMatcher
	cache     interfaces.ExtractionCache
	client    interfaces.ModelClient
	titles    interfaces.TitleGenerator
	budget    interfaces.BudgetGate
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.DocumentProcessor = (*Service)(nil)

// NewService wires the pipeline. The budget gate may be nil, which means
// extractions are never blocked.
func NewService(
	config *common.ExtractionConfig,
	extractor interfaces.TextExtractor,
	filter *textfilter.Service,
	analyzer *complexity.Analyzer,
	seg *segmenter.Service,
	matcher interfaces.RuleMatcher,
	extractionCache interfaces.ExtractionCache,
	client interfaces.ModelClient,
	titles interfaces.TitleGenerator,
	budget interfaces.BudgetGate,
	logger arbor.ILogger,
) *Service {
	if budget == nil {
		budget = interfaces.AllowAllBudget{}
	}
	return &Service{
		config:    config,
		extractor: extractor,
		filter:    filter,
		analyzer:  analyzer,
		segmenter: seg,
		matcher:   matcher,
		cache:     extractionCache,
		client:    client,
		titles:    titles,
		budget:    budget,
		logger:    logger,
	}
}

// ProcessDocument parses uploaded bytes into text plus metadata. Non-PDF
// input is rejected before any extraction work.
func (s *Service) ProcessDocument(ctx context.Context, data []byte, filename string, hints models.DocumentHints) (*models.ProcessedDocument, error) {
	if err := s.validateHints(hints); err != nil {
		return nil, err
	}

	doc := &models.RawDocument{
		Data:     data,
		Filename: filename,
		MimeType: "application/pdf",
		FileSize: int64(len(data)),
	}

	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, interfaces.NewPipelineError(interfaces.StageParse, false, err)
	}

	s.logger.Info().
		Str("file", filename).
		Int("pages", text.PageCount).
		Str("method", string(text.ExtractionMethod)).
		Int("chars", len(text.Text)).
		Msg("Document parsed")

	return &models.ProcessedDocument{
		Text: text.Text,
		Metadata: models.DocumentMetadata{
			Filename:  filename,
			MimeType:  doc.MimeType,
			FileSize:  doc.FileSize,
			PageCount: text.PageCount,
			Method:    text.ExtractionMethod,
		},
	}, nil
}

// SegmentDocument splits text into budget-respecting segments.
func (s *Service) SegmentDocument(text string, tokenBudget int) []string {
	return s.segmenter.Segment(text, tokenBudget)
}

// ExtractObligations runs the full text-to-obligations path. Ordering is
// deliberate: everything that can fail or short-circuit cheaply (hints,
// budget, cache, rules) runs before any model cost is incurred.
func (s *Service) ExtractObligations(ctx context.Context, text string, hints models.DocumentHints, opts interfaces.ExtractOptions) (*models.ExtractionResult, error) {
	start := time.Now()

	if err := s.validateHints(hints); err != nil {
		return nil, err
	}

	if err := s.budget.ExtractionAllowed(ctx, opts.CompanyID); err != nil {
		return nil, fmt.Errorf("extraction not permitted for company %s: %w", opts.CompanyID, err)
	}

	filtered := s.filter.Filter(text)

	meta := models.ExtractionMetadata{
		ExtractionID: uuid.New().String(),
		Filename:     opts.Filename,
		DocumentType: string(hints.Type()),
		Regulator:    hints.Regulator(),
		PageCount:    opts.PageCount,
		RemovedNoise: filtered.RemovedSections,
	}

	key := cache.Key(filtered.FilteredText, string(hints.Type()), hints.Regulator(), s.matcher.LibraryVersion())
	if entry, ok := s.cache.Lookup(ctx, key); ok {
		meta.CacheHit = true
		s.logger.Info().
			Str("extraction_id", meta.ExtractionID).
			Str("cache_key", key[:12]).
			Msg("Cache hit, skipping model call")
		return &models.ExtractionResult{
			Obligations:      entry.Obligations,
			Metadata:         meta,
			UsedLLM:          false,
			ExtractionTimeMs: time.Since(start).Milliseconds(),
			TokenUsage:       entry.TokenUsage,
			Complexity:       entry.Complexity,
		}, nil
	}

	if result := s.tryRuleLibrary(ctx, filtered.FilteredText, hints, meta, opts, start); result != nil {
		return result, nil
	}

	analysis := s.analyzer.Analyze(filtered.FilteredText, hints.Regulator(), opts.PageCount, hints.Type())
	s.logger.Info().
		Str("extraction_id", meta.ExtractionID).
		Str("complexity", string(analysis.Complexity)).
		Str("model_tier", string(analysis.RecommendedModel)).
		Float64("confidence", analysis.Confidence).
		Msg("Complexity assessed")

	segments := s.segmenter.Segment(filtered.FilteredText, s.config.TokenBudget)
	meta.SegmentCount = len(segments)

	obligations, usage, err := s.extractSegments(ctx, segments, hints, analysis.RecommendedModel, opts)
	if err != nil {
		return nil, err
	}

	if titleUsage := s.fillTitles(ctx, obligations); titleUsage != nil {
		usage.Add(*titleUsage)
	}

	entry := &models.CacheEntry{
		Obligations: obligations,
		TokenUsage:  usage,
		Complexity:  analysis.Complexity,
	}
	s.cache.Store(ctx, key, entry)

	return &models.ExtractionResult{
		Obligations:      obligations,
		Metadata:         meta,
		UsedLLM:          true,
		ExtractionTimeMs: time.Since(start).Milliseconds(),
		TokenUsage:       usage,
		Complexity:       analysis.Complexity,
	}, nil
}

// tryRuleLibrary attempts the deterministic fast path. Returns a result
// only when coverage clears the configured threshold; match failures are
// logged and treated as a miss.
func (s *Service) tryRuleLibrary(ctx context.Context, filteredText string, hints models.DocumentHints, meta models.ExtractionMetadata, opts interfaces.ExtractOptions, start time.Time) *models.ExtractionResult {
	match, err := s.matcher.Match(ctx, filteredText, hints)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rule matching failed, falling back to model extraction")
		return nil
	}
	if match.Coverage < s.config.RuleCoverageThreshold {
		s.logger.Debug().
			Float64("coverage", match.Coverage).
			Float64("threshold", s.config.RuleCoverageThreshold).
			Int("matches", len(match.Obligations)).
			Msg("Rule coverage below threshold")
		return nil
	}

	meta.RuleLibraryHit = true
	s.logger.Info().
		Str("extraction_id", meta.ExtractionID).
		Float64("coverage", match.Coverage).
		Int("obligations", len(match.Obligations)).
		Msg("Rule library covered document, skipping model call")

	analysis := s.analyzer.Analyze(filteredText, hints.Regulator(), opts.PageCount, hints.Type())

	return &models.ExtractionResult{
		Obligations:      match.Obligations,
		Metadata:         meta,
		UsedLLM:          false,
		ExtractionTimeMs: time.Since(start).Milliseconds(),
		Complexity:       analysis.Complexity,
	}
}

// extractSegments runs model extraction across segments with bounded
// concurrency. Results are merged in segment order regardless of which
// call finishes first; any segment failure fails the whole extraction.
func (s *Service) extractSegments(ctx context.Context, segments []string, hints models.DocumentHints, tier models.ModelTier, opts interfaces.ExtractOptions) ([]models.ObligationDraft, models.TokenUsage, error) {
	system := systemPrompt(hints)
	perSegment := make([][]models.ObligationDraft, len(segments))
	usages := make([]models.TokenUsage, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	concurrency := s.config.SegmentConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, segment := range segments {
		g.Go(func() error {
			resp, err := s.client.Generate(gctx, &interfaces.ModelRequest{
				System:    system,
				Prompt:    segmentPrompt(segment, i, len(segments)),
				Tier:      tier,
				PageCount: opts.PageCount,
				FileSize:  opts.FileSize,
			})
			if err != nil {
				return interfaces.NewPipelineError(interfaces.StageModel, isTransient(err), err)
			}
			drafts, err := parseObligations(resp.Content)
			if err != nil {
				return interfaces.NewPipelineError(interfaces.StageMerge, true, fmt.Errorf("segment %d: %w", i+1, err))
			}
			perSegment[i] = drafts
			usages[i] = resp.Usage
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.TokenUsage{}, err
	}

	var merged []models.ObligationDraft
	var usage models.TokenUsage
	for i := range segments {
		merged = append(merged, perSegment[i]...)
		usage.Add(usages[i])
	}
	return merged, usage, nil
}

// fillTitles generates display titles for obligations lacking one. Title
// failures never fail the extraction; untitled obligations pass through.
func (s *Service) fillTitles(ctx context.Context, obligations []models.ObligationDraft) *models.TokenUsage {
	if s.titles == nil {
		return nil
	}
	var untitled []int
	for i := range obligations {
		if obligations[i].Title == "" {
			untitled = append(untitled, i)
		}
	}
	if len(untitled) == 0 {
		return nil
	}

	subset := make([]models.ObligationDraft, len(untitled))
	for j, idx := range untitled {
		subset[j] = obligations[idx]
	}

	titles, usage, err := s.titles.GenerateTitles(ctx, subset)
	if err != nil {
		s.logger.Warn().Err(err).Int("count", len(untitled)).Msg("Title generation failed, leaving obligations untitled")
		return &usage
	}
	for j, idx := range untitled {
		if j < len(titles) && titles[j] != "" {
			obligations[idx].Title = titles[j]
		}
	}
	return &usage
}

func (s *Service) validateHints(hints models.DocumentHints) error {
	if hints == nil {
		return fmt.Errorf("document hints are required")
	}
	if _, err := models.HintsFor(hints.Type(), hints.Regulator(), nil); err != nil {
		return err
	}
	if err := validate.Struct(hints); err != nil {
		return fmt.Errorf("invalid document hints: %w", err)
	}
	return nil
}

func isTransient(err error) bool {
	var transient *interfaces.ModelTransientError
	return errors.As(err, &transient)
}
