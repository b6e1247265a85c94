// Package docproc turns a crawled or uploaded document into chunker-ready
// markdown, per spec.md §4.3.
package docproc

import "context"

// RawDocument is one fetched or uploaded document awaiting format detection.
type RawDocument struct {
	URL      string
	Filename string
	Content  []byte
	Format   Format
}

// Format identifies how RawDocument.Content should be interpreted.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatPDF      Format = "pdf"
)

// PDFExtractor converts a PDF's bytes into layout-aware markdown, emitting
// fenced code blocks for code regions. No concrete implementation ships with
// Archon; a real extractor is an external binary/service wired in by the
// operator.
type PDFExtractor interface {
	Extract(ctx context.Context, content []byte) (markdown string, err error)
	Available() bool
}

// OCREngine rasterizes a PDF page-by-page and runs OCR when PDFExtractor's
// output falls below ocrFallbackThreshold characters.
type OCREngine interface {
	RecognizePages(ctx context.Context, content []byte) (markdown string, err error)
	Available() bool
}

// ocrFallbackThreshold is the character count below which PDFExtractor
// output is considered too sparse and OCR is attempted instead.
const ocrFallbackThreshold = 200

// NoopPDFExtractor reports itself unavailable so callers can detect the
// absence of a real extractor and skip straight to OCR, or fail the job.
type NoopPDFExtractor struct{}

func (NoopPDFExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	return "", nil
}

func (NoopPDFExtractor) Available() bool { return false }

// NoopOCREngine mirrors NoopPDFExtractor for environments without Tesseract
// or similar OCR dependencies installed.
type NoopOCREngine struct{}

func (NoopOCREngine) RecognizePages(ctx context.Context, content []byte) (string, error) {
	return "", nil
}

func (NoopOCREngine) Available() bool { return false }
