// Package complexity scores documents for model routing. The analysis is a
// pure function of document text and metadata: identical input always yields
// identical output, keeping cost estimates reproducible.
package complexity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ecocomply/extract/internal/models"
)

const (
	// simplePageThreshold: at or below this page count, length favors simple.
	simplePageThreshold = 20

	// oversizePageThreshold: above this, the document is flagged regardless
	// of other scores.
	oversizePageThreshold = 100

	// structureThreshold: for medium complexity, the lighter model is
	// recommended only when the structure score reaches this value.
	structureThreshold = 0.6

	// complexScoreCutoff and simpleScoreCutoff bound the weighted score
	// bands for the three tiers.
	complexScoreCutoff = 0.65
	simpleScoreCutoff  = 0.35
)

// knownRegulators is the familiarity list. Documents from these issuers
// score low on regulator complexity. Aliases share a canonical name so a
// document naming a regulator twice is not treated as multi-regulator.
var knownRegulators = []struct {
	canonical string
	alias     string
}{
	{"environment agency", "environment agency"},
	{"natural resources wales", "natural resources wales"},
	{"sepa", "sepa"},
	{"sepa", "scottish environment protection agency"},
	{"northern ireland environment agency", "northern ireland environment agency"},
	{"ofwat", "ofwat"},
	{"thames water", "thames water"},
	{"severn trent", "severn trent"},
	{"united utilities", "united utilities"},
	{"yorkshire water", "yorkshire water"},
	{"anglian water", "anglian water"},
}

var (
	// conditionNumberRegex detects sequential condition numbering, the main
	// structural-clarity signal.
	conditionNumberRegex = regexp.MustCompile(`(?m)^\s*\d+(\.\d+)+\s+\S`)

	// calculationRegex detects calculation/formula language that pushes a
	// document toward complex.
	calculationRegex = regexp.MustCompile(`(?i)(calculated\s+(as|in accordance)|formula|shall be determined by|aggregate\s+of|sum of the|multiplied by|divided by|%\s*of\s+the)`)
)

// Analyzer scores documents across independent signals.
type Analyzer struct {
	logger arbor.ILogger
}

// NewAnalyzer creates a complexity analyzer.
func NewAnalyzer(logger arbor.ILogger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze classifies the document and recommends a model tier. A single
// critical signal (multi-regulator text) forces complex with confidence 1.0
// regardless of all other scores.
func (a *Analyzer) Analyze(text string, regulator string, pageCount int, docType models.DocumentType) *models.ComplexityAnalysis {
	lower := strings.ToLower(text)

	metrics := models.ComplexityMetrics{
		PageCount: pageCount,
	}
	var reasons []string

	// Regulator familiarity.
	named := regulatorsNamed(lower)
	declared := strings.ToLower(strings.TrimSpace(regulator))
	switch {
	case len(named) >= 2:
		metrics.RegulatorComplexity = 1.0
		metrics.MultiRegulator = true
		reasons = append(reasons, fmt.Sprintf("multiple regulators referenced (%s)", strings.Join(named, ", ")))
	case len(named) == 1 || isKnownRegulator(declared):
		metrics.RegulatorComplexity = 0.0
		reasons = append(reasons, "known regulator")
	default:
		metrics.RegulatorComplexity = 0.5
		reasons = append(reasons, "unfamiliar regulator")
	}

	// Structural clarity: density of sequential condition numbering.
	metrics.StructureScore = structureScore(text)
	if metrics.StructureScore >= structureThreshold {
		reasons = append(reasons, "clear sequential condition numbering")
	} else {
		reasons = append(reasons, "weak condition structure")
	}

	// Length.
	switch {
	case pageCount > oversizePageThreshold:
		metrics.LengthScore = 1.0
		metrics.OversizeFlagged = true
		reasons = append(reasons, fmt.Sprintf("oversized document (%d pages)", pageCount))
	case pageCount > simplePageThreshold:
		metrics.LengthScore = 0.5
	default:
		metrics.LengthScore = 0.0
		reasons = append(reasons, "short document")
	}

	// Calculation/formula language.
	metrics.CalculationSignals = len(calculationRegex.FindAllString(text, -1))
	if metrics.CalculationSignals > 0 {
		reasons = append(reasons, fmt.Sprintf("calculation language present (%d occurrences)", metrics.CalculationSignals))
	}

	// Critical signal short-circuits everything else.
	if metrics.MultiRegulator {
		return &models.ComplexityAnalysis{
			Complexity:       models.ComplexityComplex,
			RecommendedModel: models.ModelTierHeavy,
			Confidence:       1.0,
			Reasons:          reasons,
			Metrics:          metrics,
		}
	}

	score, confidence := weightedScore(metrics)
	complexity := classify(score, metrics)
	tier := recommendTier(complexity, metrics)

	a.logger.Debug().
		Str("complexity", string(complexity)).
		Str("model", string(tier)).
		Float64("score", score).
		Float64("confidence", confidence).
		Int("pages", pageCount).
		Msg("Analyzed document complexity")

	return &models.ComplexityAnalysis{
		Complexity:       complexity,
		RecommendedModel: tier,
		Confidence:       confidence,
		Reasons:          reasons,
		Metrics:          metrics,
	}
}

// weightedScore combines the independent signals. Returns the score and a
// confidence in [0,1] reflecting how far the score sits from band edges.
func weightedScore(m models.ComplexityMetrics) (float64, float64) {
	calc := 0.0
	if m.CalculationSignals > 0 {
		calc = 1.0
		if m.CalculationSignals < 3 {
			calc = 0.6
		}
	}

	score := 0.35*m.RegulatorComplexity +
		0.25*(1.0-m.StructureScore) +
		0.25*m.LengthScore +
		0.15*calc

	// Confidence: distance from the nearest band boundary, scaled.
	nearest := score - simpleScoreCutoff
	if d := score - complexScoreCutoff; abs(d) < abs(nearest) {
		nearest = d
	}
	confidence := 0.5 + 2*abs(nearest)
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < 0 {
		confidence = 0
	}
	return score, confidence
}

func classify(score float64, m models.ComplexityMetrics) models.Complexity {
	if m.OversizeFlagged {
		return models.ComplexityComplex
	}
	switch {
	case score >= complexScoreCutoff:
		return models.ComplexityComplex
	case score <= simpleScoreCutoff:
		return models.ComplexitySimple
	default:
		return models.ComplexityMedium
	}
}

// recommendTier maps complexity to a model tier. Medium documents get the
// lighter model only when the structure score clears the threshold.
func recommendTier(c models.Complexity, m models.ComplexityMetrics) models.ModelTier {
	switch c {
	case models.ComplexitySimple:
		return models.ModelTierLight
	case models.ComplexityMedium:
		if m.StructureScore >= structureThreshold {
			return models.ModelTierLight
		}
		return models.ModelTierHeavy
	default:
		return models.ModelTierHeavy
	}
}

// structureScore measures how much of the document is organized under
// sequential condition numbering. Returns a value in [0,1].
func structureScore(text string) float64 {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return 0
	}
	numbered := len(conditionNumberRegex.FindAllString(text, -1))
	if numbered == 0 {
		return 0
	}
	// One numbered condition per ~12 lines of text is fully structured.
	score := float64(numbered) * 12.0 / float64(len(lines))
	if score > 1 {
		score = 1
	}
	return score
}

// regulatorRegexes matches aliases on word boundaries, so "sepa" never
// matches inside "separate".
var regulatorRegexes = func() []*regexp.Regexp {
	regexes := make([]*regexp.Regexp, len(knownRegulators))
	for i, reg := range knownRegulators {
		regexes[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(reg.alias) + `\b`)
	}
	return regexes
}()

// regulatorsNamed returns the distinct known regulators mentioned in the
// text, canonical names in list order for determinism.
func regulatorsNamed(lowerText string) []string {
	seen := make(map[string]bool)
	var named []string
	for i, re := range regulatorRegexes {
		if re.MatchString(lowerText) && !seen[knownRegulators[i].canonical] {
			seen[knownRegulators[i].canonical] = true
			named = append(named, knownRegulators[i].canonical)
		}
	}
	return named
}

func isKnownRegulator(name string) bool {
	if name == "" {
		return false
	}
	for _, reg := range knownRegulators {
		if strings.Contains(name, reg.alias) || strings.Contains(reg.alias, name) {
			return true
		}
	}
	return false
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
