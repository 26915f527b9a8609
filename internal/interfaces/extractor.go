package interfaces

import (
	"context"

	"github.com/ecocomply/extract/internal/models"
)

// TextExtractor converts a binary document into raw text plus page and OCR
// metadata. Non-PDF input is rejected with *UnsupportedFormatError; a
// document that yields no usable text from either native parsing or OCR
// fails with *ParseError.
type TextExtractor interface {
	// Extract parses the document natively, falling back to OCR when the
	// native text is below the minimal-character threshold.
	Extract(ctx context.Context, doc *models.RawDocument) (*models.DocumentText, error)

	// Metadata reads page count and file properties without extracting text.
	Metadata(ctx context.Context, doc *models.RawDocument) (*models.DocumentMetadata, error)
}

// OCREngine recovers text from rasterized document pages. Implementations
// own a bounded worker pool; a slot is acquired for the duration of one call
// and released on every exit path.
type OCREngine interface {
	// RecognizePDF rasterizes the PDF at path and runs character
	// recognition over each page, returning the concatenated text.
	RecognizePDF(ctx context.Context, path string) (string, error)
}
