package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/archon-iirc/archon/internal/model"
)

const maxContextSourceChars = 1500

const chunkContextPrompt = `You are analyzing documentation. Generate a 1-2 sentence context for this chunk.

URL: %s

Document context:
%s

Chunk content:
%s

Instructions:
- Describe what this chunk covers and how it relates to the surrounding document
- Keep it under 100 tokens
- Output ONLY the context, no preamble`

const sourceSummaryPrompt = `Summarize the purpose and contents of this documentation source in 2-3 sentences.

Source title: %s
Pages crawled: %d
Sample content:
%s

Output ONLY the summary, no preamble.`

// ContextGenerator produces the short contextual prefix prepended to a
// chunk before embedding, and the one-paragraph summary recorded on a
// Source once ingestion completes. On provider failure the summary falls
// back to a templated string and the chunk context to "", so a flaky or
// unconfigured LLM never blocks ingestion.
type ContextGenerator struct {
	provider Provider
}

func NewContextGenerator(provider Provider) *ContextGenerator {
	return &ContextGenerator{provider: provider}
}

// GenerateChunkContext returns the contextual prefix for chunk, or "" and a
// logged cause if the provider is unavailable or errors. An empty prefix is
// a valid outcome — the ingest pipeline embeds the chunk as-is.
func (g *ContextGenerator) GenerateChunkContext(ctx context.Context, chunk *model.Chunk, docContext string) string {
	if g.provider == nil || chunk == nil {
		return ""
	}

	prompt := fmt.Sprintf(chunkContextPrompt, chunk.URL, docContext, truncateForPrompt(chunk.Content, maxContextSourceChars))
	resp, err := g.provider.Complete(ctx, Request{
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: 150,
	})
	if err != nil {
		slog.Warn("chunk context generation failed, embedding without prefix",
			slog.String("chunk_id", chunk.ID), slog.String("error", err.Error()))
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(resp.Content), "Context:"))
}

// GenerateSourceSummary returns a short description of a completed source,
// falling back to a templated line naming the page count when the provider
// is unavailable or errors.
func (g *ContextGenerator) GenerateSourceSummary(ctx context.Context, sourceID, title string, pageCount int, sample string) string {
	fallback := fmt.Sprintf("Documentation from %s — %d pages crawled", sourceID, pageCount)
	if g.provider == nil {
		return fallback
	}

	prompt := fmt.Sprintf(sourceSummaryPrompt, title, pageCount, truncateForPrompt(sample, maxContextSourceChars))
	resp, err := g.provider.Complete(ctx, Request{
		Messages:  []Message{{Role: "user", Content: prompt}},
		MaxTokens: 200,
	})
	if err != nil {
		slog.Warn("source summary generation failed, using templated summary",
			slog.String("source_id", sourceID), slog.String("error", err.Error()))
		return fallback
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return fallback
	}
	return summary
}

func truncateForPrompt(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "\n... [truncated]"
}
