package interfaces

import (
	"context"

	"github.com/ecocomply/extract/internal/models"
)

// RuleMatcher resolves obligations from a version-pinned library of known
// clause patterns, bypassing the model call when confident matches cover
// enough of the document. Matching is read-only against the library.
type RuleMatcher interface {
	// Match runs the pinned library against filtered text. Failures are
	// wrapped in *RuleMatchError; the orchestrator logs them and falls
	// back to full LLM extraction.
	Match(ctx context.Context, filteredText string, hints models.DocumentHints) (*models.RuleMatchResult, error)

	// LibraryVersion returns the pinned library version.
	LibraryVersion() string
}

// RuleLibraryStorage loads and stores versioned clause-pattern libraries.
// The pipeline only reads; writes come from the pattern-discovery
// collaborator.
type RuleLibraryStorage interface {
	// GetLibrary returns the library for version.
	GetLibrary(ctx context.Context, version string) (*models.RuleLibrary, error)

	// PutLibrary upserts a library. Used by seeding and the external
	// discovery collaborator.
	PutLibrary(ctx context.Context, library *models.RuleLibrary) error
}
