// Package ocr provides a Tesseract-backed OCR engine for scanned PDFs.
// Pages are rasterized with pdftoppm and recognized with the tesseract
// binary; both tools must be on PATH or configured explicitly.
package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/semaphore"

	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
)

// Engine runs external OCR tooling with a bounded number of concurrent
// tesseract processes.
type Engine struct {
	config *common.OCRConfig
	logger arbor.ILogger
	slots  *semaphore.Weighted
}

var _ interfaces.OCREngine = (*Engine)(nil)

func NewEngine(config *common.OCRConfig, logger arbor.ILogger) *Engine {
	workers := config.Workers
	if workers <= 0 {
		workers = 2
	}
	return &Engine{
		config: config,
		logger: logger,
		slots:  semaphore.NewWeighted(int64(workers)),
	}
}

// RecognizePDF rasterizes every page of the PDF at path and recognizes
// each page image. Page texts are concatenated in page order separated
// by form feeds.
func (e *Engine) RecognizePDF(ctx context.Context, path string) (string, error) {
	if !e.config.Enabled {
		return "", fmt.Errorf("ocr is disabled")
	}

	workDir, err := os.MkdirTemp("", "ecocomply-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create OCR work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	pages, err := e.rasterize(ctx, path, workDir)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdftoppm produced no page images for %s", filepath.Base(path))
	}

	e.logger.Debug().
		Str("file", filepath.Base(path)).
		Int("pages", len(pages)).
		Msg("Starting OCR recognition")

	texts := make([]string, len(pages))
	errs := make([]error, len(pages))
	var wg sync.WaitGroup

	for i, page := range pages {
		if err := e.slots.Acquire(ctx, 1); err != nil {
			return "", err
		}
		wg.Add(1)
		go func(idx int, image string) {
			defer wg.Done()
			defer e.slots.Release(1)
			text, err := e.recognize(ctx, image)
			if err != nil {
				errs[idx] = err
				return
			}
			texts[idx] = text
		}(i, page)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	return strings.Join(texts, "\f"), nil
}

// rasterize converts the PDF into per-page grayscale PNG images and
// returns their paths sorted in page order.
func (e *Engine) rasterize(ctx context.Context, pdfPath, workDir string) ([]string, error) {
	bin := e.config.PdftoppmBin
	if bin == "" {
		bin = "pdftoppm"
	}

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, bin, "-r", "300", "-gray", "-png", pdfPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	// pdftoppm zero-pads page numbers, lexical order is page order
	sort.Strings(pages)
	return pages, nil
}

// recognize runs tesseract on a single page image, writing to stdout.
func (e *Engine) recognize(ctx context.Context, imagePath string) (string, error) {
	bin := e.config.TesseractBin
	if bin == "" {
		bin = "tesseract"
	}
	lang := e.config.Language
	if lang == "" {
		lang = "eng"
	}

	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout", "-l", lang)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("tesseract failed on %s: %w: %s", filepath.Base(imagePath), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("tesseract failed on %s: %w", filepath.Base(imagePath), err)
	}
	return string(out), nil
}
