package models

// Complexity classifies how hard a document is to extract from.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ModelTier selects the model class used for extraction.
type ModelTier string

const (
	// ModelTierLight is the cheaper, faster model for straightforward documents
	ModelTierLight ModelTier = "light"
	// ModelTierHeavy is the stronger model for complex documents
	ModelTierHeavy ModelTier = "heavy"
)

// ComplexityMetrics carries the individual signal scores that produced a
// classification. Useful for audit and for tuning thresholds.
type ComplexityMetrics struct {
	PageCount           int     `json:"page_count"`
	StructureScore      float64 `json:"structure_score"`      // Higher = clearer sequential condition numbering
	RegulatorComplexity float64 `json:"regulator_complexity"` // 0 known, 0.5 unknown, 1.0 multi-regulator
	LengthScore         float64 `json:"length_score"`
	CalculationSignals  int     `json:"calculation_signals"` // Count of formula/calculation phrases
	MultiRegulator      bool    `json:"multi_regulator"`
	OversizeFlagged     bool    `json:"oversize_flagged"` // Set when page count exceeds the hard threshold
}

// ComplexityAnalysis is a pure function of document text and metadata; it
// holds no persisted state and is deterministic for identical input.
type ComplexityAnalysis struct {
	Complexity       Complexity        `json:"complexity"`
	RecommendedModel ModelTier         `json:"recommended_model"`
	Confidence       float64           `json:"confidence"` // In [0,1]
	Reasons          []string          `json:"reasons"`
	Metrics          ComplexityMetrics `json:"metrics"`
}
