package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archon-iirc/archon/internal/model"
)

func TestMarkdownChunker_NeverSplitsFencedCodeBlock(t *testing.T) {
	fence := "```go\nfunc main() {\n" + strings.Repeat("    fmt.Println(1)\n", 200) + "}\n```\n"
	page := &model.Page{ID: "p1", SourceID: "s1", URL: "https://x/doc", FullContent: "intro\n\n" + fence + "\nmore text"}

	c := NewMarkdownChunker()
	chunks, err := c.ChunkPage(context.Background(), page, 200)
	require.NoError(t, err)

	for _, chunk := range chunks {
		assert.Zero(t, strings.Count(chunk.Content, "```")%2, "chunk must have balanced fences: %q", chunk.Content[:min(40, len(chunk.Content))])
	}
}

func TestMarkdownChunker_AssignsSequentialChunkNumbers(t *testing.T) {
	content := strings.Repeat("paragraph one.\n\n", 50)
	page := &model.Page{ID: "p1", SourceID: "s1", URL: "https://x/doc", FullContent: content}

	c := NewMarkdownChunker()
	chunks, err := c.ChunkPage(context.Background(), page, 100)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.ChunkNumber)
		assert.Equal(t, "s1", chunk.SourceID)
		assert.Equal(t, "p1", chunk.PageID)
	}
}

func TestMarkdownChunker_EmptyPageReturnsNoChunks(t *testing.T) {
	page := &model.Page{ID: "p1", SourceID: "s1", URL: "https://x/doc", FullContent: "   \n  "}
	c := NewMarkdownChunker()
	chunks, err := c.ChunkPage(context.Background(), page, 100)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMarkdownChunker_PrefersHeadingBoundary(t *testing.T) {
	content := strings.Repeat("x", 90) + "\n\n## Next Section\n" + strings.Repeat("y", 90)
	page := &model.Page{ID: "p1", SourceID: "s1", URL: "https://x/doc", FullContent: content}

	c := NewMarkdownChunker()
	chunks, err := c.ChunkPage(context.Background(), page, 100)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasPrefix(chunks[1].Content, "## Next Section"))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
