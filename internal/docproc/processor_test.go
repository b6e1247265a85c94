package docproc

import (
	"context"
	"testing"

	"github.com/archon-iirc/archon/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_MarkdownPassthrough(t *testing.T) {
	p := New()
	out, err := p.Process(context.Background(), RawDocument{
		Format:  FormatMarkdown,
		Content: []byte("# Hello\nWorld"),
	})
	require.NoError(t, err)
	assert.Equal(t, "# Hello\nWorld", out)
}

func TestProcessor_PDFWithoutExtractorFails(t *testing.T) {
	p := New()
	_, err := p.Process(context.Background(), RawDocument{Format: FormatPDF, Content: []byte("%PDF-1.4")})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

type fakePDFExtractor struct {
	output string
	err    error
}

func (f fakePDFExtractor) Extract(ctx context.Context, content []byte) (string, error) {
	return f.output, f.err
}
func (f fakePDFExtractor) Available() bool { return true }

type fakeOCREngine struct{ output string }

func (f fakeOCREngine) RecognizePages(ctx context.Context, content []byte) (string, error) {
	return f.output, nil
}
func (f fakeOCREngine) Available() bool { return true }

func TestProcessor_PDFFallsBackToOCRBelowThreshold(t *testing.T) {
	p := New(
		WithPDFExtractor(fakePDFExtractor{output: "x"}),
		WithOCREngine(fakeOCREngine{output: "--- Page 1 ---\nrecognized text"}),
	)
	out, err := p.Process(context.Background(), RawDocument{Format: FormatPDF, Content: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Contains(t, out, "recognized text")
}

func TestProcessor_PDFSkipsOCRWhenExtractionSufficient(t *testing.T) {
	sufficient := make([]byte, ocrFallbackThreshold+10)
	for i := range sufficient {
		sufficient[i] = 'a'
	}
	p := New(
		WithPDFExtractor(fakePDFExtractor{output: string(sufficient)}),
		WithOCREngine(fakeOCREngine{output: "should not be used"}),
	)
	out, err := p.Process(context.Background(), RawDocument{Format: FormatPDF, Content: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, string(sufficient), out)
}

func TestProcessor_UnsupportedFormatErrors(t *testing.T) {
	p := New()
	_, err := p.Process(context.Background(), RawDocument{Format: "docx", Content: []byte("x")})
	require.Error(t, err)
}
