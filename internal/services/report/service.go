// Package report renders extraction results as human-readable PDF
// summaries for compliance reviewers.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/ecocomply/extract/internal/models"
)

// Service builds markdown summaries of extraction results and renders
// them to PDF.
type Service struct {
	logger arbor.ILogger
}

func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// BuildMarkdown produces the summary document for an extraction result.
func (s *Service) BuildMarkdown(result *models.ExtractionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Obligation Extraction Summary\n\n")
	if result.Metadata.Filename != "" {
		fmt.Fprintf(&b, "**Document:** %s\n\n", result.Metadata.Filename)
	}
	fmt.Fprintf(&b, "**Document type:** %s\n\n", result.Metadata.DocumentType)
	if result.Metadata.Regulator != "" {
		fmt.Fprintf(&b, "**Regulator:** %s\n\n", result.Metadata.Regulator)
	}
	fmt.Fprintf(&b, "**Complexity:** %s\n\n", result.Complexity)

	source := "full model extraction"
	if result.Metadata.CacheHit {
		source = "cached result"
	} else if result.Metadata.RuleLibraryHit {
		source = "rule library match"
	}
	fmt.Fprintf(&b, "**Source:** %s\n\n", source)

	if result.UsedLLM {
		fmt.Fprintf(&b, "**Model usage:** %d input tokens, %d output tokens, estimated $%.4f\n\n",
			result.TokenUsage.InputTokens, result.TokenUsage.OutputTokens, result.TokenUsage.EstimatedCost)
	}

	fmt.Fprintf(&b, "## Obligations (%d)\n\n", len(result.Obligations))
	for i, o := range result.Obligations {
		title := o.Title
		if title == "" {
			title = "Untitled obligation"
		}
		fmt.Fprintf(&b, "### %d. %s\n\n", i+1, title)
		if o.ConditionReference != "" {
			fmt.Fprintf(&b, "**Condition:** %s\n\n", o.ConditionReference)
		}
		fmt.Fprintf(&b, "%s\n\n", o.Description)
		fmt.Fprintf(&b, "**Category:** %s | **Frequency:** %s | **Confidence:** %.0f%%\n\n",
			o.Category, o.Frequency, o.ConfidenceScore*100)
	}

	return b.String()
}

// RenderPDF converts a markdown summary to PDF bytes.
func (s *Service) RenderPDF(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{pdf: pdf, source: source}
	if err := renderer.render(doc); err != nil {
		return nil, fmt.Errorf("failed to render report PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report PDF: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("Report PDF generated")
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	bold   bool
	italic bool
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) setFont(size float64) {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont("Arial", style, size)
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(3)
			r.bold = true
			sizes := map[int]float64{1: 16, 2: 13, 3: 11}
			size, ok := sizes[node.Level]
			if !ok {
				size = 10
			}
			r.setFont(size)
		} else {
			r.bold = false
			r.setFont(10)
			r.pdf.Ln(7)
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			segment := node.Segment
			r.pdf.Write(5, string(r.source[segment.Start:segment.Stop]))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.pdf.Ln(5)
			}
		}
	case *ast.Emphasis:
		if node.Level >= 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.setFont(10)
	case *ast.ListItem:
		if entering {
			r.pdf.Write(5, "  - ")
		} else {
			r.pdf.Ln(5)
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(4)
			x, y := r.pdf.GetXY()
			width, _ := r.pdf.GetPageSize()
			r.pdf.Line(x, y, width-15, y)
			r.pdf.Ln(4)
		}
	}
	return ast.WalkContinue, nil
}
