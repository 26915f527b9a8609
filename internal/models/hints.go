package models

import (
	"fmt"
	"strings"
)

// DocumentType discriminates the supported regulatory document families.
type DocumentType string

const (
	DocTypeEnvironmentalPermit DocumentType = "environmental_permit"
	DocTypeTradeEffluent       DocumentType = "trade_effluent_consent"
	DocTypeGenerator           DocumentType = "generator_licence"
)

// DocumentHints is the capability interface behind the per-type hint
// structs. Hints are resolved by the explicit DocumentType discriminant, not
// by structural typing.
type DocumentHints interface {
	// Type returns the document type discriminant.
	Type() DocumentType

	// Regulator returns the declared issuing regulator, or "" when unknown.
	Regulator() string

	// PromptContext returns document-family guidance injected into the
	// extraction prompt.
	PromptContext() string

	// ConditionPattern returns the condition-numbering style typical for
	// the family, used by the filter and rule matcher to protect
	// obligation-bearing paragraphs.
	ConditionPattern() string
}

// EnvironmentalPermitHints configures extraction for environmental permits
// (EA/SEPA/NRW installations and waste permits).
type EnvironmentalPermitHints struct {
	RegulatorName string   `validate:"omitempty,min=2"`
	PermitNumber  string   `validate:"omitempty,min=2"`
	ModuleTypes   []string `validate:"omitempty,dive,min=1"`
}

func (h EnvironmentalPermitHints) Type() DocumentType { return DocTypeEnvironmentalPermit }
func (h EnvironmentalPermitHints) Regulator() string  { return h.RegulatorName }

func (h EnvironmentalPermitHints) PromptContext() string {
	var b strings.Builder
	b.WriteString("The document is an environmental permit. Conditions are grouped into numbered sections covering emissions, monitoring, reporting, and record keeping.")
	if h.PermitNumber != "" {
		b.WriteString(" Permit reference: " + h.PermitNumber + ".")
	}
	if len(h.ModuleTypes) > 0 {
		b.WriteString(" Relevant compliance modules: " + strings.Join(h.ModuleTypes, ", ") + ".")
	}
	return b.String()
}

func (h EnvironmentalPermitHints) ConditionPattern() string {
	return `(?m)^\s*(\d+(?:\.\d+)+)\s+`
}

// TradeEffluentHints configures extraction for trade effluent consents
// issued by water companies.
type TradeEffluentHints struct {
	RegulatorName string `validate:"omitempty,min=2"`
	ConsentNumber string `validate:"omitempty,min=2"`
}

func (h TradeEffluentHints) Type() DocumentType { return DocTypeTradeEffluent }
func (h TradeEffluentHints) Regulator() string  { return h.RegulatorName }

func (h TradeEffluentHints) PromptContext() string {
	ctx := "The document is a trade effluent consent. Obligations concern discharge limits, sampling points, and volumetric conditions."
	if h.ConsentNumber != "" {
		ctx += " Consent reference: " + h.ConsentNumber + "."
	}
	return ctx
}

func (h TradeEffluentHints) ConditionPattern() string {
	return `(?m)^\s*[Cc]ondition\s+(\d+)`
}

// GeneratorHints configures extraction for generator licences and permits
// (standby/backup generation under MCPD).
type GeneratorHints struct {
	RegulatorName string `validate:"omitempty,min=2"`
	CapacityMW    float64 `validate:"omitempty,gt=0"`
}

func (h GeneratorHints) Type() DocumentType { return DocTypeGenerator }
func (h GeneratorHints) Regulator() string  { return h.RegulatorName }

func (h GeneratorHints) PromptContext() string {
	ctx := "The document is a generator permit under the Medium Combustion Plant Directive. Obligations concern run-hour limits, emissions testing, and notification duties."
	if h.CapacityMW > 0 {
		ctx += fmt.Sprintf(" Declared capacity: %.1f MW.", h.CapacityMW)
	}
	return ctx
}

func (h GeneratorHints) ConditionPattern() string {
	return `(?m)^\s*(\d+(?:\.\d+)*)\s+`
}

// HintsFor resolves the typed hint struct for a document type. An
// unsupported type is an input error surfaced before any model cost is
// incurred.
func HintsFor(docType DocumentType, regulator string, moduleTypes []string) (DocumentHints, error) {
	switch docType {
	case DocTypeEnvironmentalPermit:
		return EnvironmentalPermitHints{RegulatorName: regulator, ModuleTypes: moduleTypes}, nil
	case DocTypeTradeEffluent:
		return TradeEffluentHints{RegulatorName: regulator}, nil
	case DocTypeGenerator:
		return GeneratorHints{RegulatorName: regulator}, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", docType)
	}
}
