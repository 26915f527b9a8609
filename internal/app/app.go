// Package app wires the extraction pipeline's components together.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/services/cache"
	"github.com/ecocomply/extract/internal/services/complexity"
	"github.com/ecocomply/extract/internal/services/extractor"
	"github.com/ecocomply/extract/internal/services/llm"
	"github.com/ecocomply/extract/internal/services/ocr"
	"github.com/ecocomply/extract/internal/services/processor"
	"github.com/ecocomply/extract/internal/services/report"
	"github.com/ecocomply/extract/internal/services/rules"
	"github.com/ecocomply/extract/internal/services/segmenter"
	"github.com/ecocomply/extract/internal/services/textfilter"
	badgerstorage "github.com/ecocomply/extract/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB           *badgerstorage.BadgerDB
	CacheStorage *badgerstorage.CacheStorage
	RuleStorage  *badgerstorage.RuleStorage

	ModelClient   interfaces.ModelClient
	Processor     interfaces.DocumentProcessor
	ReportService *report.Service
	CacheSweeper  *cache.Sweeper
}

// New initializes the application with all dependencies.
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	db, err := badgerstorage.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	app.DB = db
	app.CacheStorage = badgerstorage.NewCacheStorage(db, logger)
	app.RuleStorage = badgerstorage.NewRuleStorage(db, logger)

	if err := app.RuleStorage.SeedDefaultLibrary(ctx, cfg.Extraction.RuleLibraryVersion); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to seed rule library: %w", err)
	}

	client, err := llm.NewClient(ctx, cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.ModelClient = client

	var ocrEngine interfaces.OCREngine
	if cfg.OCR.Enabled {
		ocrEngine = ocr.NewEngine(&cfg.OCR, logger)
	}

	extractionCache := cache.NewService(app.CacheStorage, logger)
	matcher := rules.NewMatcher(app.RuleStorage, cfg.Extraction.RuleLibraryVersion, logger)

	app.Processor = processor.NewService(
		&cfg.Extraction,
		extractor.NewService(&cfg.Extraction, ocrEngine, logger),
		textfilter.NewService(cfg.Filter, logger),
		complexity.NewAnalyzer(logger),
		segmenter.NewService(logger),
		matcher,
		extractionCache,
		client,
		processor.NewTitleService(client, logger),
		interfaces.AllowAllBudget{},
		logger,
	)
	app.ReportService = report.NewService(logger)

	ttl := common.ParseDuration(cfg.Extraction.CacheTTL, 30*24*time.Hour)
	app.CacheSweeper = cache.NewSweeper(app.CacheStorage, ttl, cfg.Extraction.CacheSweepSchedule, logger)
	if err := app.CacheSweeper.Start(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to start cache sweeper: %w", err)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("rule_library", cfg.Extraction.RuleLibraryVersion).
		Bool("ocr_enabled", cfg.OCR.Enabled).
		Msg("Application initialized")

	return app, nil
}

// Close shuts components down in reverse initialization order.
func (a *App) Close() {
	if a.CacheSweeper != nil {
		a.CacheSweeper.Stop()
	}
	if a.ModelClient != nil {
		a.ModelClient.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
