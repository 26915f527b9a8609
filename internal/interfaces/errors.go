// Package interfaces provides service interfaces for dependency injection.
package interfaces

import (
	"errors"
	"fmt"
)

// Stage identifies the pipeline stage at which a failure occurred. Callers
// use it to decide between "try again later" and "fix the input".
type Stage string

const (
	StageParse      Stage = "parse"
	StageFilter     Stage = "filter"
	StageComplexity Stage = "complexity"
	StageRules      Stage = "rules"
	StageCache      Stage = "cache"
	StageSegment    Stage = "segment"
	StageModel      Stage = "model"
	StageMerge      Stage = "merge"
)

// ErrCacheMiss is returned by cache lookups when no entry exists for a key.
// It is never surfaced to pipeline callers.
var ErrCacheMiss = errors.New("cache entry not found")

// ErrExtractionBlocked is returned by the budget gate when a company's AI
// spend is exhausted. Checked before any model cost is incurred.
var ErrExtractionBlocked = errors.New("extraction blocked by budget")

// UnsupportedFormatError indicates non-PDF input. Fatal, surfaced to the
// caller immediately.
type UnsupportedFormatError struct {
	MimeType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q: only PDF is accepted", e.MimeType)
}

// ParseError indicates that native parsing and OCR both failed to yield
// usable text. Fatal.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document parse failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("document parse failed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ModelNonRetryableError indicates bad credentials, exhausted quota, or an
// aborted call. No further attempts are made.
type ModelNonRetryableError struct {
	Kind string // e.g. "invalid_api_key", "insufficient_quota", "aborted"
	Err  error
}

func (e *ModelNonRetryableError) Error() string {
	return fmt.Sprintf("model call failed (%s): %v", e.Kind, e.Err)
}

func (e *ModelNonRetryableError) Unwrap() error { return e.Err }

// ModelTransientError indicates a retryable failure that exhausted its retry
// budget. The last underlying error is preserved.
type ModelTransientError struct {
	Attempts int
	Err      error
}

func (e *ModelTransientError) Error() string {
	return fmt.Sprintf("model call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ModelTransientError) Unwrap() error { return e.Err }

// EmptyResponseError indicates the model returned null or empty content.
// Treated as a failure, not a successful empty extraction.
type EmptyResponseError struct {
	Model string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("model %q returned an empty response", e.Model)
}

// CacheError wraps a cache backend failure. Logged and treated as a miss,
// never propagated.
type CacheError struct {
	Op  string // "lookup" or "store"
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// RuleMatchError wraps a rule library failure. Logged; the pipeline falls
// back to full LLM extraction rather than failing the request.
type RuleMatchError struct {
	Err error
}

func (e *RuleMatchError) Error() string {
	return fmt.Sprintf("rule library match failed: %v", e.Err)
}

func (e *RuleMatchError) Unwrap() error { return e.Err }

// PipelineError is the typed failure returned to callers from mandatory
// stages. Retryable tells the caller whether retrying later can help.
type PipelineError struct {
	Stage     Stage
	Retryable bool
	Err       error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("extraction failed at stage %s (retryable=%t): %v", e.Stage, e.Retryable, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError wraps err with stage and retryability information.
func NewPipelineError(stage Stage, retryable bool, err error) *PipelineError {
	return &PipelineError{Stage: stage, Retryable: retryable, Err: err}
}
