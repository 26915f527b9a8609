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

// CacheStorage implements interfaces.CacheStorage over Badger.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.CacheStorage = (*CacheStorage)(nil)

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) *CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// Get returns the entry for key, or ErrCacheMiss when absent.
func (s *CacheStorage) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.Store().Get(key, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return &entry, nil
}

// Put upserts an entry. Entries are content-addressed, so last-writer-wins
// overwrites store identical values.
func (s *CacheStorage) Put(ctx context.Context, entry *models.CacheEntry) error {
	if err := s.db.Store().Upsert(entry.Key, entry); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// DeleteOlderThan removes entries created before the cutoff.
func (s *CacheStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.CacheEntry
	query := badgerhold.Where("CreatedAt").Lt(cutoff)
	if err := s.db.Store().Find(&stale, query); err != nil {
		return 0, fmt.Errorf("failed to query stale cache entries: %w", err)
	}

	deleted := 0
	for _, entry := range stale {
		if err := s.db.Store().Delete(entry.Key, &models.CacheEntry{}); err != nil {
			s.logger.Warn().Str("key", entry.Key).Err(err).Msg("Failed to delete stale cache entry")
			continue
		}
		deleted++
	}

	return deleted, nil
}
