// Package rules resolves obligations from a version-pinned library of known
// clause patterns, short-circuiting the model call when confident matches
// cover enough of the document.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// Matcher matches clause patterns against filtered text. The library is
// loaded once per pinned version and cached; matching never mutates it.
type Matcher struct {
	storage interfaces.RuleLibraryStorage
	version string
	logger  arbor.ILogger

	mu       sync.RWMutex
	library  *models.RuleLibrary
	compiled []*regexp.Regexp
}

// Compile-time assertion
var _ interfaces.RuleMatcher = (*Matcher)(nil)

// NewMatcher creates a matcher pinned to a library version.
func NewMatcher(storage interfaces.RuleLibraryStorage, version string, logger arbor.ILogger) *Matcher {
	return &Matcher{
		storage: storage,
		version: version,
		logger:  logger,
	}
}

// LibraryVersion returns the pinned library version.
func (m *Matcher) LibraryVersion() string {
	return m.version
}

// Match runs every compiled pattern against the filtered text. Failures are
// wrapped in *RuleMatchError so the orchestrator can degrade to the full
// LLM path instead of failing the request.
func (m *Matcher) Match(ctx context.Context, filteredText string, hints models.DocumentHints) (*models.RuleMatchResult, error) {
	library, compiled, err := m.load(ctx)
	if err != nil {
		return nil, &interfaces.RuleMatchError{Err: err}
	}

	var obligations []models.ObligationDraft
	var spans []models.TextSpan

	for i, pattern := range library.Patterns {
		if pattern.DocumentType != "" && pattern.DocumentType != string(hints.Type()) {
			continue
		}
		re := compiled[i]
		if re == nil {
			continue
		}
		for _, loc := range re.FindAllStringSubmatchIndex(filteredText, -1) {
			matched := filteredText[loc[0]:loc[1]]
			obligations = append(obligations, draftFromPattern(pattern, matched, loc, filteredText))
			spans = append(spans, models.TextSpan{Start: loc[0], End: loc[1]})
		}
	}

	coverage := coverageRatio(spans, len(filteredText))

	m.logger.Debug().
		Str("library_version", m.version).
		Int("matches", len(obligations)).
		Float64("coverage", coverage).
		Msg("Rule library match complete")

	return &models.RuleMatchResult{
		Obligations:    obligations,
		Spans:          spans,
		Coverage:       coverage,
		LibraryVersion: library.Version,
	}, nil
}

// load fetches and compiles the pinned library once.
func (m *Matcher) load(ctx context.Context) (*models.RuleLibrary, []*regexp.Regexp, error) {
	m.mu.RLock()
	if m.library != nil {
		lib, compiled := m.library, m.compiled
		m.mu.RUnlock()
		return lib, compiled, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.library != nil {
		return m.library, m.compiled, nil
	}

	library, err := m.storage.GetLibrary(ctx, m.version)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rule library %q: %w", m.version, err)
	}

	compiled := make([]*regexp.Regexp, len(library.Patterns))
	for i, pattern := range library.Patterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			m.logger.Warn().
				Str("pattern_id", pattern.ID).
				Err(err).
				Msg("Skipping invalid clause pattern")
			continue
		}
		compiled[i] = re
	}

	m.library = library
	m.compiled = compiled
	return library, compiled, nil
}

// draftFromPattern builds an obligation from a pattern match. The first
// capture group, when present, becomes the condition reference.
func draftFromPattern(pattern models.ClausePattern, matched string, loc []int, text string) models.ObligationDraft {
	reference := ""
	if len(loc) >= 4 && loc[2] >= 0 {
		reference = text[loc[2]:loc[3]]
	}

	title := pattern.TitleTemplate
	if title == "" {
		title = summarizeClause(matched)
	}

	return models.ObligationDraft{
		ConditionReference: strings.TrimSpace(reference),
		Title:              title,
		Description:        strings.TrimSpace(matched),
		Category:           pattern.Category,
		Frequency:          pattern.Frequency,
		ConfidenceScore:    pattern.Confidence,
	}
}

// coverageRatio computes the fraction of the text covered by the union of
// the matched spans.
func coverageRatio(spans []models.TextSpan, textLen int) float64 {
	if textLen == 0 || len(spans) == 0 {
		return 0
	}

	sorted := make([]models.TextSpan, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	covered := 0
	end := -1
	for _, span := range sorted {
		start := span.Start
		if start < end {
			start = end
		}
		if span.End > start {
			covered += span.End - start
			end = span.End
		}
	}

	return float64(covered) / float64(textLen)
}

// summarizeClause produces a short title from the clause text.
func summarizeClause(clause string) string {
	clause = strings.Join(strings.Fields(clause), " ")
	if len(clause) > 80 {
		clause = clause[:77] + "..."
	}
	return clause
}
