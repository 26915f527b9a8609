package interfaces

import (
	"context"

	"github.com/ecocomply/extract/internal/models"
)

// DocumentProcessor is the orchestrator composing the pipeline end to end.
// These are the three externally callable operations of the subsystem.
type DocumentProcessor interface {
	// ProcessDocument converts uploaded bytes into text plus metadata.
	// Rejects non-PDF input before any further work.
	ProcessDocument(ctx context.Context, data []byte, filename string, hints models.DocumentHints) (*models.ProcessedDocument, error)

	// ExtractObligations runs the full text-to-obligations path: filter,
	// cache lookup, rule matching, complexity analysis, segmentation, and
	// model calls. An unsupported document type fails before any network
	// call is attempted.
	ExtractObligations(ctx context.Context, text string, hints models.DocumentHints, opts ExtractOptions) (*models.ExtractionResult, error)

	// SegmentDocument splits text into token-budget-respecting segments.
	SegmentDocument(text string, tokenBudget int) []string
}

// ExtractOptions carries per-request collaborator inputs.
type ExtractOptions struct {
	// CompanyID identifies the tenant for budget gating.
	CompanyID string

	// PageCount and FileSize describe the source document; they drive the
	// model timeout tier and complexity length signals.
	PageCount int
	FileSize  int64

	// Filename is carried into result metadata.
	Filename string
}

// TitleGenerator produces short display titles for obligations. For one
// obligation a single call is used; for several a single batched prompt is
// attempted first, falling back deterministically to one call per obligation
// on batch failure.
type TitleGenerator interface {
	GenerateTitles(ctx context.Context, obligations []models.ObligationDraft) ([]string, models.TokenUsage, error)
}
