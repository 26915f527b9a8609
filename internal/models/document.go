package models

// ExtractionMethod indicates how text was obtained from the source document.
type ExtractionMethod string

const (
	// ExtractionNative indicates text was parsed directly from the PDF content streams
	ExtractionNative ExtractionMethod = "native"
	// ExtractionOCR indicates text was recovered by rasterizing pages and running OCR
	ExtractionOCR ExtractionMethod = "ocr"
)

// RawDocument is the immutable upload handed to the pipeline. It is consumed
// once by the text extractor and not retained.
type RawDocument struct {
	Data     []byte `json:"-"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

// DocumentText is the output of the text extractor.
type DocumentText struct {
	Text             string           `json:"text"`
	PageCount        int              `json:"page_count"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
}

// DocumentMetadata describes the parsed document for downstream collaborators.
type DocumentMetadata struct {
	Filename    string           `json:"filename"`
	MimeType    string           `json:"mime_type"`
	FileSize    int64            `json:"file_size"`
	PageCount   int              `json:"page_count"`
	Method      ExtractionMethod `json:"method"`
	IsEncrypted bool             `json:"is_encrypted"`
}

// ProcessedDocument pairs extracted text with its metadata. Returned by the
// ProcessDocument operation.
type ProcessedDocument struct {
	Text     string           `json:"text"`
	Metadata DocumentMetadata `json:"metadata"`
}

// FilteredText is the output of the noise filter. Derived, never mutated
// after creation.
type FilteredText struct {
	FilteredText        string   `json:"filtered_text"`
	FilteredLength      int      `json:"filtered_length"`
	ReductionPercentage float64  `json:"reduction_percentage"` // In [0,100]
	RemovedSections     []string `json:"removed_sections"`
}
