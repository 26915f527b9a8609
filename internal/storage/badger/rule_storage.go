package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// RuleStorage implements interfaces.RuleLibraryStorage over Badger. The
// pipeline reads libraries by pinned version; writes come from seeding and
// the external pattern-discovery collaborator.
type RuleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.RuleLibraryStorage = (*RuleStorage)(nil)

// NewRuleStorage creates a new RuleStorage instance
func NewRuleStorage(db *BadgerDB, logger arbor.ILogger) *RuleStorage {
	return &RuleStorage{
		db:     db,
		logger: logger,
	}
}

// GetLibrary returns the library for version.
func (s *RuleStorage) GetLibrary(ctx context.Context, version string) (*models.RuleLibrary, error) {
	var library models.RuleLibrary
	err := s.db.Store().Get(version, &library)
	if err == badgerhold.ErrNotFound {
		return nil, fmt.Errorf("rule library version %q not found", version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule library: %w", err)
	}
	return &library, nil
}

// PutLibrary upserts a library under its version key.
func (s *RuleStorage) PutLibrary(ctx context.Context, library *models.RuleLibrary) error {
	if library.Version == "" {
		return fmt.Errorf("rule library version cannot be empty")
	}
	if library.UpdatedAt.IsZero() {
		library.UpdatedAt = time.Now().UTC()
	}
	if err := s.db.Store().Upsert(library.Version, library); err != nil {
		return fmt.Errorf("failed to store rule library: %w", err)
	}

	s.logger.Debug().
		Str("version", library.Version).
		Int("patterns", len(library.Patterns)).
		Msg("Stored rule library")
	return nil
}

// SeedDefaultLibrary writes the built-in starter library when the pinned
// version is absent. Lets a fresh install run before the discovery
// collaborator has proposed any patterns.
func (s *RuleStorage) SeedDefaultLibrary(ctx context.Context, version string) error {
	if _, err := s.GetLibrary(ctx, version); err == nil {
		return nil
	}

	library := &models.RuleLibrary{
		Version:   version,
		UpdatedAt: time.Now().UTC(),
		Patterns: []models.ClausePattern{
			{
				ID:            "quarterly-monitoring-report",
				Pattern:       `(?m)^\s*(\d+(?:\.\d+)+)\s+.*shall submit .{0,60}(quarterly|annual|monthly) (monitoring )?report[^\n]*`,
				Category:      "reporting",
				Frequency:     "quarterly",
				TitleTemplate: "Submit periodic monitoring report",
				Confidence:    0.9,
			},
			{
				ID:            "record-retention",
				Pattern:       `(?m)^\s*(\d+(?:\.\d+)+)\s+.*records? shall be (kept|retained|maintained)[^\n]*`,
				Category:      "record_keeping",
				Frequency:     "continuous",
				TitleTemplate: "Retain compliance records",
				Confidence:    0.85,
			},
			{
				ID:            "notify-regulator-incident",
				Pattern:       `(?m)^\s*(\d+(?:\.\d+)+)\s+.*shall notify the (regulator|agency|authority) .{0,80}(incident|breach|exceedance)[^\n]*`,
				Category:      "notification",
				Frequency:     "on_event",
				TitleTemplate: "Notify regulator of incidents",
				Confidence:    0.85,
			},
		},
	}

	if err := s.PutLibrary(ctx, library); err != nil {
		return err
	}

	s.logger.Info().
		Str("version", version).
		Int("patterns", len(library.Patterns)).
		Msg("Seeded default rule library")
	return nil
}
