// Package segmenter splits oversized documents into token-budget-respecting
// chunks for sequential or concurrent model processing.
package segmenter

import (
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
)

// charsPerToken approximates tokens as character count / 4.
const charsPerToken = 4

// paragraphSeparator is the join boundary used when splitting. Segments
// concatenated with it reconstruct the original text losslessly.
const paragraphSeparator = "\n\n"

// Service implements paragraph-respecting text segmentation.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a new segmenter.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Segment splits text into ordered, non-empty segments whose character
// counts respect tokenBudget (approximated as chars/4). Text that fits the
// budget is returned as a single segment. Splitting prefers paragraph
// boundaries; a single paragraph over budget falls back to hard character
// slicing.
func (s *Service) Segment(text string, tokenBudget int) []string {
	if text == "" {
		return nil
	}
	if tokenBudget <= 0 {
		return []string{text}
	}

	maxChars := tokenBudget * charsPerToken
	if len(text) <= maxChars {
		return []string{text}
	}

	paragraphs := strings.Split(text, paragraphSeparator)
	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		// A single paragraph over budget cannot be packed; hard-slice it.
		if len(para) > maxChars {
			flush()
			for _, slice := range hardSlice(para, maxChars) {
				segments = append(segments, slice)
			}
			continue
		}

		extra := len(para)
		if current.Len() > 0 {
			extra += len(paragraphSeparator)
		}
		if current.Len()+extra > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(paragraphSeparator)
		}
		current.WriteString(para)
	}
	flush()

	s.logger.Debug().
		Int("input_chars", len(text)).
		Int("token_budget", tokenBudget).
		Int("segments", len(segments)).
		Msg("Segmented document")

	return segments
}

// hardSlice cuts a paragraph into pieces of at most maxChars bytes. Cuts
// land on rune boundaries so no UTF-8 sequence is split. Every piece is
// non-empty.
func hardSlice(text string, maxChars int) []string {
	var slices []string
	for len(text) > maxChars {
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxChars
		}
		slices = append(slices, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		slices = append(slices, text)
	}
	return slices
}

// Reassemble joins segments back with the paragraph separator. Inverse of
// Segment for paragraph-boundary splits.
func Reassemble(segments []string) string {
	return strings.Join(segments, paragraphSeparator)
}
