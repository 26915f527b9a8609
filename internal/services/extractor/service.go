// Package extractor converts raw PDF bytes into document text. Native
// extraction uses pdfcpu; scanned documents fall back to OCR when the
// native pass yields too little text.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

var pdfMagic = []byte("%PDF-")

// Service implements the TextExtractor interface using pdfcpu, with an
// optional OCR engine for scanned documents.
type Service struct {
	config  *common.ExtractionConfig
	ocr     interfaces.OCREngine
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.TextExtractor = (*Service)(nil)

// NewService creates a new text extractor. The OCR engine may be nil,
// in which case scanned documents fail with a parse error.
func NewService(config *common.ExtractionConfig, ocr interfaces.OCREngine, logger arbor.ILogger) *Service {
	tempDir := filepath.Join(os.TempDir(), "ecocomply-extract")
	os.MkdirAll(tempDir, 0755)

	return &Service{
		config:  config,
		ocr:     ocr,
		logger:  logger,
		tempDir: tempDir,
	}
}

// Extract produces the full document text. Native pdfcpu extraction is
// tried first; if the result is shorter than the configured minimum the
// document is treated as scanned and routed through OCR.
func (s *Service) Extract(ctx context.Context, doc *models.RawDocument) (*models.DocumentText, error) {
	if err := validateFormat(doc); err != nil {
		return nil, err
	}

	tempFile, cleanup, err := s.writeTempPDF(doc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, &interfaces.ParseError{Reason: "unreadable PDF structure", Err: err}
	}
	pageCount := pdfCtx.PageCount

	text, nativeErr := s.extractNative(tempFile, pageCount)
	if nativeErr == nil && len(strings.TrimSpace(text)) >= s.config.MinTextLength {
		return &models.DocumentText{
			Text:             text,
			PageCount:        pageCount,
			ExtractionMethod: models.ExtractionNative,
		}, nil
	}

	if nativeErr != nil {
		s.logger.Warn().
			Str("file", doc.Filename).
			Err(nativeErr).
			Msg("Native text extraction failed, falling back to OCR")
	} else {
		s.logger.Info().
			Str("file", doc.Filename).
			Int("native_length", len(strings.TrimSpace(text))).
			Msg("Native extraction below minimum length, document appears scanned")
	}

	if s.ocr == nil {
		return nil, &interfaces.ParseError{
			Reason: "document appears scanned and OCR is not available",
			Err:    nativeErr,
		}
	}

	ocrText, ocrErr := s.ocr.RecognizePDF(ctx, tempFile)
	if ocrErr != nil {
		return nil, &interfaces.ParseError{Reason: "both native extraction and OCR failed", Err: ocrErr}
	}
	if len(strings.TrimSpace(ocrText)) < s.config.MinTextLength {
		return nil, &interfaces.ParseError{Reason: "OCR produced insufficient text"}
	}

	return &models.DocumentText{
		Text:             ocrText,
		PageCount:        pageCount,
		ExtractionMethod: models.ExtractionOCR,
	}, nil
}

// Metadata reads structural information without extracting text.
func (s *Service) Metadata(ctx context.Context, doc *models.RawDocument) (*models.DocumentMetadata, error) {
	if err := validateFormat(doc); err != nil {
		return nil, err
	}

	tempFile, cleanup, err := s.writeTempPDF(doc)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, &interfaces.ParseError{Reason: "unreadable PDF structure", Err: err}
	}

	return &models.DocumentMetadata{
		Filename:    doc.Filename,
		MimeType:    doc.MimeType,
		FileSize:    int64(len(doc.Data)),
		PageCount:   pdfCtx.PageCount,
		IsEncrypted: pdfCtx.Encrypt != nil,
	}, nil
}

// extractNative pulls page content through pdfcpu's content extraction
// and concatenates pages in order.
func (s *Service) extractNative(tempFile string, pageCount int) (string, error) {
	outDir := filepath.Join(s.tempDir, fmt.Sprintf("pages_%d", os.Getpid()))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("content extraction failed: %w", err)
	}

	files, err := os.ReadDir(outDir)
	if err != nil {
		return "", err
	}

	pageTexts := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		} else if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if pageNum > 1 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(pageTexts[pageNum])
	}
	return builder.String(), nil
}

// writeTempPDF persists the document for pdfcpu, which requires a file
// path. The cleanup function removes the file.
func (s *Service) writeTempPDF(doc *models.RawDocument) (string, func(), error) {
	tempFile, err := os.CreateTemp(s.tempDir, "doc-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp PDF file: %w", err)
	}
	name := tempFile.Name()
	if _, err := tempFile.Write(doc.Data); err != nil {
		tempFile.Close()
		os.Remove(name)
		return "", nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	tempFile.Close()
	return name, func() { os.Remove(name) }, nil
}

// validateFormat rejects anything that is not a PDF by magic bytes, not
// just declared MIME type.
func validateFormat(doc *models.RawDocument) error {
	if len(doc.Data) == 0 {
		return &interfaces.ParseError{Reason: "empty document"}
	}
	if !bytes.HasPrefix(doc.Data, pdfMagic) {
		mimeType := doc.MimeType
		if mimeType == "" {
			mimeType = "unknown"
		}
		return &interfaces.UnsupportedFormatError{MimeType: mimeType}
	}
	return nil
}
