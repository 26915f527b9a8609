// Package cache provides the content-addressed extraction cache. The cache
// is a best-effort optimization: backend failures are logged and treated as
// misses, never propagated to the pipeline.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

// Service implements interfaces.ExtractionCache over a storage backend.
type Service struct {
	storage interfaces.CacheStorage
	logger  arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ExtractionCache = (*Service)(nil)

// NewService creates a new cache service.
func NewService(storage interfaces.CacheStorage, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// Lookup returns the cached entry for key. Backend errors are logged and
// reported as misses.
func (s *Service) Lookup(ctx context.Context, key string) (*models.CacheEntry, bool) {
	entry, err := s.storage.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, interfaces.ErrCacheMiss) {
			cacheErr := &interfaces.CacheError{Op: "lookup", Err: err}
			s.logger.Warn().Str("key", key).Err(cacheErr).Msg("Cache lookup failed, treating as miss")
		}
		return nil, false
	}

	s.logger.Debug().
		Str("key", key).
		Int("obligations", len(entry.Obligations)).
		Msg("Cache hit")
	return entry, true
}

// Store writes an entry. Errors are logged and swallowed.
func (s *Service) Store(ctx context.Context, key string, entry *models.CacheEntry) {
	entry.Key = key
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := s.storage.Put(ctx, entry); err != nil {
		cacheErr := &interfaces.CacheError{Op: "store", Err: err}
		s.logger.Warn().Str("key", key).Err(cacheErr).Msg("Cache store failed, result unaffected")
		return
	}

	s.logger.Debug().
		Str("key", key).
		Int("obligations", len(entry.Obligations)).
		Msg("Stored extraction in cache")
}
