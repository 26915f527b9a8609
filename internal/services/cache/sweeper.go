package cache

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ecocomply/extract/internal/interfaces"
)

// Sweeper deletes cache entries older than the configured TTL on a cron
// schedule. Store-level TTL enforcement belongs to the storage collaborator;
// the sweep keeps the embedded backend bounded.
type Sweeper struct {
	storage  interfaces.CacheStorage
	ttl      time.Duration
	schedule string
	logger   arbor.ILogger
	cron     *cron.Cron
}

// NewSweeper creates a TTL sweeper. It does nothing until Start is called.
func NewSweeper(storage interfaces.CacheStorage, ttl time.Duration, schedule string, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		storage:  storage,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return err
	}
	s.cron.Start()

	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("ttl", s.ttl).
		Msg("Cache TTL sweeper started")
	return nil
}

// Stop stops the scheduler, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

// Sweep deletes entries created before now-ttl. Errors are logged; the
// sweep is best-effort like every other cache operation.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.ttl)
	deleted, err := s.storage.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Cache sweep failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().
			Int("deleted", deleted).
			Str("cutoff", cutoff.Format(time.RFC3339)).
			Msg("Swept expired cache entries")
	}
}
