// Package textfilter strips boilerplate from permit text before it is sent
// to the model: tables of contents, repeated headers/footers, and legal
// preambles. Filtering is conservative; paragraphs that carry condition
// numbering are never removed.
package textfilter

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/models"
)

var (
	// tocLineRegex matches dotted-leader contents lines ("Introduction ...... 4").
	tocLineRegex = regexp.MustCompile(`^.{0,80}\.{3,}\s*\d+\s*$`)

	// tocHeadingRegex matches a contents heading.
	tocHeadingRegex = regexp.MustCompile(`(?i)^\s*(table of )?contents\s*$`)

	// pageFooterRegex matches bare page markers ("Page 3 of 42", "- 7 -").
	pageFooterRegex = regexp.MustCompile(`(?i)^\s*(page\s+\d+(\s+of\s+\d+)?|-\s*\d+\s*-)\s*$`)

	// conditionLineRegex matches condition-numbered lines. These are never
	// stripped regardless of any other pattern.
	conditionLineRegex = regexp.MustCompile(`(?m)^\s*(\d+(\.\d+)+|[Cc]ondition\s+\d+)\b`)

	// boilerplatePhrases are preamble markers; a paragraph starting with one
	// and containing no condition line is treated as legal boilerplate.
	boilerplatePhrases = []string{
		"this permit is issued under",
		"in exercise of the powers conferred",
		"introductory note",
		"this introductory note does not form",
		"explanatory note",
	}
)

// Service implements boilerplate filtering.
type Service struct {
	config common.FilterConfig
	logger arbor.ILogger
}

// NewService creates a new text filter.
func NewService(config common.FilterConfig, logger arbor.ILogger) *Service {
	return &Service{config: config, logger: logger}
}

// Filter strips enabled noise categories from text. Idempotent: filtering
// already-filtered text yields zero additional reduction.
func (s *Service) Filter(text string) *models.FilteredText {
	original := len(text)
	var removed []string

	filtered := text
	if s.config.StripTableOfContents {
		var n int
		filtered, n = s.stripTableOfContents(filtered)
		if n > 0 {
			removed = append(removed, "table_of_contents")
		}
	}
	if s.config.StripHeadersFooters {
		var n int
		filtered, n = s.stripHeadersFooters(filtered)
		if n > 0 {
			removed = append(removed, "headers_footers")
		}
	}
	if s.config.StripBoilerplate {
		var n int
		filtered, n = s.stripBoilerplate(filtered)
		if n > 0 {
			removed = append(removed, "boilerplate_preamble")
		}
	}

	reduction := 0.0
	if original > 0 {
		reduction = float64(original-len(filtered)) / float64(original) * 100
		if reduction < 0 {
			reduction = 0
		}
		if reduction > 100 {
			reduction = 100
		}
	}

	s.logger.Debug().
		Int("original_chars", original).
		Int("filtered_chars", len(filtered)).
		Float64("reduction_pct", reduction).
		Strs("removed", removed).
		Msg("Filtered document text")

	return &models.FilteredText{
		FilteredText:        filtered,
		FilteredLength:      len(filtered),
		ReductionPercentage: reduction,
		RemovedSections:     removed,
	}
}

// stripTableOfContents removes a contents heading plus its dotted-leader
// lines. Returns the filtered text and the number of lines removed.
func (s *Service) stripTableOfContents(text string) (string, int) {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	removed := 0
	inTOC := false

	for _, line := range lines {
		if conditionLineRegex.MatchString(line) {
			inTOC = false
			kept = append(kept, line)
			continue
		}
		if tocHeadingRegex.MatchString(line) {
			inTOC = true
			removed++
			continue
		}
		if tocLineRegex.MatchString(line) {
			removed++
			continue
		}
		if inTOC && strings.TrimSpace(line) == "" {
			// Blank line ends the contents block.
			inTOC = false
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n"), removed
}

// stripHeadersFooters removes page markers and lines repeated often enough
// to be running headers.
func (s *Service) stripHeadersFooters(text string) (string, int) {
	lines := strings.Split(text, "\n")

	// Count occurrences of short non-condition lines; a line repeating 3+
	// times is a running header or footer.
	counts := make(map[string]int)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 80 || conditionLineRegex.MatchString(line) {
			continue
		}
		counts[trimmed]++
	}

	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if conditionLineRegex.MatchString(line) {
			kept = append(kept, line)
			continue
		}
		if pageFooterRegex.MatchString(line) {
			removed++
			continue
		}
		if trimmed != "" && counts[trimmed] >= 3 {
			removed++
			continue
		}
		kept = append(kept, line)
	}

	return strings.Join(kept, "\n"), removed
}

// stripBoilerplate removes preamble paragraphs that open with a known
// boilerplate phrase and contain no condition line.
func (s *Service) stripBoilerplate(text string) (string, int) {
	paragraphs := strings.Split(text, "\n\n")
	kept := make([]string, 0, len(paragraphs))
	removed := 0

	for _, para := range paragraphs {
		if s.isBoilerplate(para) {
			removed++
			continue
		}
		kept = append(kept, para)
	}

	return strings.Join(kept, "\n\n"), removed
}

func (s *Service) isBoilerplate(paragraph string) bool {
	if conditionLineRegex.MatchString(paragraph) {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(paragraph))
	for _, phrase := range boilerplatePhrases {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}
