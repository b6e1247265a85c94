package docproc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archon-iirc/archon/internal/apperr"
)

// Processor dispatches a RawDocument to format-specific extraction and
// applies the shared post-extraction repair pass.
type Processor struct {
	pdf PDFExtractor
	ocr OCREngine
}

// Option configures a Processor.
type Option func(*Processor)

func WithPDFExtractor(e PDFExtractor) Option { return func(p *Processor) { p.pdf = e } }
func WithOCREngine(e OCREngine) Option       { return func(p *Processor) { p.ocr = e } }

// New builds a Processor. Without options, PDF input fails with a
// validation error rather than silently producing empty markdown.
func New(opts ...Option) *Processor {
	p := &Processor{pdf: NoopPDFExtractor{}, ocr: NoopOCREngine{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process converts doc into chunker-ready markdown.
func (p *Processor) Process(ctx context.Context, doc RawDocument) (string, error) {
	var markdown string
	var err error

	switch doc.Format {
	case FormatMarkdown, "":
		markdown = string(doc.Content)
	case FormatHTML:
		markdown = string(doc.Content)
	case FormatPDF:
		markdown, err = p.processPDF(ctx, doc.Content)
	default:
		return "", apperr.Validation(fmt.Sprintf("unsupported document format %q", doc.Format), nil)
	}
	if err != nil {
		return "", err
	}

	return repairCodeSpans(markdown), nil
}

func (p *Processor) processPDF(ctx context.Context, content []byte) (string, error) {
	if !p.pdf.Available() {
		return "", apperr.Validation("no PDF extractor configured", nil)
	}
	markdown, err := p.pdf.Extract(ctx, content)
	if err != nil {
		return "", apperr.ProviderTransient("PDF extraction failed", err)
	}
	if len(markdown) >= ocrFallbackThreshold || !p.ocr.Available() {
		return markdown, nil
	}

	slog.Info("PDF extraction below threshold, falling back to OCR", slog.Int("chars", len(markdown)))
	ocrMarkdown, err := p.ocr.RecognizePages(ctx, content)
	if err != nil {
		slog.Warn("OCR fallback failed, using sparse extraction", slog.String("error", err.Error()))
		return markdown, nil
	}
	if ocrMarkdown == "" {
		return markdown, nil
	}
	return ocrMarkdown, nil
}
