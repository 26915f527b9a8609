package models

import (
	"time"
)

// ClausePattern is a previously validated clause-to-obligation mapping.
// Patterns are matched read-only; discovery of new patterns happens in an
// external collaborator that consumes correction feedback.
type ClausePattern struct {
	ID              string  `json:"id"`
	Pattern         string  `json:"pattern"` // Regular expression over filtered text
	Category        string  `json:"category"`
	Frequency       string  `json:"frequency"`
	TitleTemplate   string  `json:"title_template"`
	Confidence      float64 `json:"confidence"` // In [0,1]
	DocumentType    string  `json:"document_type,omitempty"`
}

// RuleLibrary is a version-pinned set of clause patterns.
type RuleLibrary struct {
	Version   string          `json:"version" badgerhold:"key"`
	Patterns  []ClausePattern `json:"patterns"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TextSpan is a half-open [Start, End) range into the filtered text consumed
// by a rule match.
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// RuleMatchResult holds obligations resolved from the rule library plus the
// spans of text they consumed. Coverage is the fraction of the input covered
// by consumed spans.
type RuleMatchResult struct {
	Obligations    []ObligationDraft `json:"obligations"`
	Spans          []TextSpan        `json:"spans"`
	Coverage       float64           `json:"coverage"`
	LibraryVersion string            `json:"library_version"`
}
