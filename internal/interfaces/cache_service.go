package interfaces

import (
	"context"
	"time"

	"github.com/ecocomply/extract/internal/models"
)

// ExtractionCache is a content-addressed cache of extraction results. A
// lookup miss or backend failure must never block or fail the pipeline;
// implementations log errors and report misses instead.
type ExtractionCache interface {
	// Lookup returns the cached entry for key, or (nil, false) on a miss.
	// Never returns an error to the caller; backend failures are logged
	// and treated as misses.
	Lookup(ctx context.Context, key string) (*models.CacheEntry, bool)

	// Store writes an entry. At most one store happens per successful
	// extraction. Errors are logged and swallowed; the extraction result
	// is unaffected.
	Store(ctx context.Context, key string, entry *models.CacheEntry)
}

// CacheStorage is the persistence backend behind ExtractionCache.
type CacheStorage interface {
	// Get returns the entry for key, or ErrCacheMiss when absent.
	Get(ctx context.Context, key string) (*models.CacheEntry, error)

	// Put upserts an entry. Last-writer-wins is acceptable: entries are
	// content-addressed, so concurrent writers store identical values.
	Put(ctx context.Context, entry *models.CacheEntry) error

	// DeleteOlderThan removes entries created before the cutoff and
	// returns the number deleted. Used by the TTL sweep.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
