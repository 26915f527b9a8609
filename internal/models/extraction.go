package models

import (
	"time"
)

// ObligationDraft is the unstructured-to-structured projection of a single
// compliance duty. It is owned by the pipeline until handed off to the
// persistence collaborator, which turns it into an Obligation row.
type ObligationDraft struct {
	ConditionReference string  `json:"condition_reference"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Category           string  `json:"category"`
	Frequency          string  `json:"frequency"`
	ConfidenceScore    float64 `json:"confidence_score"` // In [0,1]
}

// TokenUsage accounts for model consumption on a single extraction. Counts
// are never negative and EstimatedCost is always >= 0.
type TokenUsage struct {
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	TotalTokens   int     `json:"total_tokens"`
	Model         string  `json:"model"`
	EstimatedCost float64 `json:"estimated_cost"` // USD
}

// Add accumulates usage from another call into this one. Cost is summed;
// the model name of the first call wins when they differ.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.EstimatedCost += other.EstimatedCost
	if u.Model == "" {
		u.Model = other.Model
	}
}

// ExtractionMetadata describes how a result was produced.
type ExtractionMetadata struct {
	ExtractionID   string           `json:"extraction_id"`
	Filename       string           `json:"filename,omitempty"`
	DocumentType   string           `json:"document_type"`
	Regulator      string           `json:"regulator,omitempty"`
	PageCount      int              `json:"page_count"`
	Method         ExtractionMethod `json:"method,omitempty"`
	SegmentCount   int              `json:"segment_count"`
	CacheHit       bool             `json:"cache_hit"`
	RuleLibraryHit bool             `json:"rule_library_hit"`
	RemovedNoise   []string         `json:"removed_noise,omitempty"`
}

// ExtractionResult is the terminal artifact returned to the caller. The
// persistence layer consumes it; this subsystem does not store it.
type ExtractionResult struct {
	Obligations      []ObligationDraft  `json:"obligations"`
	Metadata         ExtractionMetadata `json:"metadata"`
	UsedLLM          bool               `json:"used_llm"`
	ExtractionTimeMs int64              `json:"extraction_time_ms"`
	TokenUsage       TokenUsage         `json:"token_usage"`
	Complexity       Complexity         `json:"complexity"`
}

// CacheEntry is a content-addressed record of a previously successful
// extraction. Entries for the same key are identical by construction, so
// last-writer-wins storage is acceptable.
type CacheEntry struct {
	Key         string            `json:"key" badgerhold:"key"`
	Obligations []ObligationDraft `json:"obligations"`
	TokenUsage  TokenUsage        `json:"token_usage"`
	Complexity  Complexity        `json:"complexity"`
	CreatedAt   time.Time         `json:"created_at"`
}
