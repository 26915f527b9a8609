// Command extract runs the obligation extraction pipeline over one or
// more PDF documents and writes results as JSON, optionally with a PDF
// summary report per document.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/app"
	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	docType      = flag.String("type", "environmental_permit", "Document type: environmental_permit, trade_effluent_consent, generator_licence")
	regulator    = flag.String("regulator", "", "Regulator name, e.g. \"Environment Agency\"")
	companyID    = flag.String("company", "", "Company identifier for budget gating")
	outDir       = flag.String("out", ".", "Output directory for result JSON")
	writeReport  = flag.Bool("report", false, "Also write a PDF summary report per document")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("ecocomply-extract version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: extract [flags] document.pdf [document.pdf ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	// Startup order: config, logger, banner, application.
	configPath := *configFile
	if configPath == "" {
		if _, err := os.Stat("extract.toml"); err == nil {
			configPath = "extract.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	hints, err := models.HintsFor(models.DocumentType(*docType), *regulator, nil)
	if err != nil {
		logger.Fatal().Err(err).Str("type", *docType).Msg("Unsupported document type")
		os.Exit(1)
	}

	failed := 0
	for _, file := range files {
		if err := processFile(ctx, application, file, hints, logger); err != nil {
			logger.Error().Err(err).Str("file", file).Msg("Extraction failed")
			failed++
		}
	}
	if failed > 0 {
		logger.Error().Int("failed", failed).Int("total", len(files)).Msg("Some documents failed")
		os.Exit(1)
	}
}

func processFile(ctx context.Context, application *app.App, path string, hints models.DocumentHints, logger arbor.ILogger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	filename := filepath.Base(path)
	processed, err := application.Processor.ProcessDocument(ctx, data, filename, hints)
	if err != nil {
		return err
	}

	result, err := application.Processor.ExtractObligations(ctx, processed.Text, hints, interfaces.ExtractOptions{
		CompanyID: *companyID,
		PageCount: processed.Metadata.PageCount,
		FileSize:  processed.Metadata.FileSize,
		Filename:  filename,
	})
	if err != nil {
		return err
	}

	logger.Info().
		Str("file", filename).
		Int("obligations", len(result.Obligations)).
		Bool("used_llm", result.UsedLLM).
		Int64("elapsed_ms", result.ExtractionTimeMs).
		Msg("Extraction complete")

	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	resultPath := filepath.Join(*outDir, base+".obligations.json")
	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(resultPath, encoded, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", resultPath, err)
	}

	if *writeReport {
		markdown := application.ReportService.BuildMarkdown(result)
		pdfBytes, err := application.ReportService.RenderPDF(markdown)
		if err != nil {
			return err
		}
		reportPath := filepath.Join(*outDir, base+".report.pdf")
		if err := os.WriteFile(reportPath, pdfBytes, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", reportPath, err)
		}
	}

	return nil
}
