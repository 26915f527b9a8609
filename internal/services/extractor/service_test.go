package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ecocomply/extract/internal/common"
	"github.com/ecocomply/extract/internal/interfaces"
	"github.com/ecocomply/extract/internal/models"
)

func testService() *Service {
	return NewService(&common.ExtractionConfig{MinTextLength: 200}, nil, arbor.NewLogger())
}

func TestExtract_RejectsNonPDFBytes(t *testing.T) {
	s := testService()
	doc := &models.RawDocument{
		Data:     []byte("PK\x03\x04 this is a zip, not a pdf"),
		Filename: "permit.docx",
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}

	_, err := s.Extract(context.Background(), doc)

	require.Error(t, err)
	var unsupported *interfaces.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, doc.MimeType, unsupported.MimeType)
}

func TestExtract_RejectsEmptyDocument(t *testing.T) {
	s := testService()

	_, err := s.Extract(context.Background(), &models.RawDocument{Filename: "empty.pdf"})

	require.Error(t, err)
	var parseErr *interfaces.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestExtract_CorruptPDFWithMagicHeaderFails(t *testing.T) {
	s := testService()
	doc := &models.RawDocument{
		Data:     []byte("%PDF-1.7 but nothing else follows"),
		Filename: "truncated.pdf",
		MimeType: "application/pdf",
	}

	_, err := s.Extract(context.Background(), doc)

	require.Error(t, err)
	var parseErr *interfaces.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestMetadata_RejectsNonPDFBytes(t *testing.T) {
	s := testService()

	_, err := s.Metadata(context.Background(), &models.RawDocument{
		Data:     []byte("plain text content"),
		MimeType: "text/plain",
	})

	require.Error(t, err)
	var unsupported *interfaces.UnsupportedFormatError
	assert.ErrorAs(t, err, &unsupported)
}
