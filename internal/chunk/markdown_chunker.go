package chunk

import (
	"context"
	"regexp"
	"strings"

	"github.com/archon-iirc/archon/internal/model"
)

var fenceLinePattern = regexp.MustCompile(`(?m)^\x60\x60\x60[A-Za-z0-9_+.-]*\s*$`)
var headingLinePattern = regexp.MustCompile(`(?m)^#{1,6}\s`)
var sentenceEndPattern = regexp.MustCompile(`[.!?][ \t\n]`)

// span is a half-open byte range.
type span struct{ start, end int }

// MarkdownChunker implements Chunker with the split-priority rules of
// spec.md §4.4: never split a fenced code block; otherwise prefer, in
// order, a heading boundary, a blank line, a sentence end, a word end,
// finally a hard cut at chunkSize.
type MarkdownChunker struct{}

func NewMarkdownChunker() *MarkdownChunker { return &MarkdownChunker{} }

var _ Chunker = (*MarkdownChunker)(nil)

func (c *MarkdownChunker) ChunkPage(ctx context.Context, page *model.Page, chunkSize int) ([]*model.Chunk, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	content := page.FullContent
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	fences := findFences(content)
	pieces := splitByRules(content, chunkSize, fences)

	chunks := make([]*model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		trimmed := strings.TrimSpace(piece)
		if trimmed == "" {
			continue
		}
		chunks = append(chunks, &model.Chunk{
			SourceID:    page.SourceID,
			PageID:      page.ID,
			URL:         page.URL,
			ChunkNumber: i,
			Content:     trimmed,
		})
	}
	return chunks, nil
}

// findFences locates fenced code block byte ranges. An unmatched opening
// fence is treated as a runaway block closed at end-of-document.
func findFences(content string) []span {
	lines := fenceLinePattern.FindAllStringIndex(content, -1)
	var fences []span
	for i := 0; i < len(lines); i += 2 {
		start := lines[i][0]
		if i+1 < len(lines) {
			// end of the closing fence line, including its trailing newline if present
			end := lines[i+1][1]
			if end < len(content) && content[end] == '\n' {
				end++
			}
			fences = append(fences, span{start: start, end: end})
		} else {
			fences = append(fences, span{start: start, end: len(content)})
		}
	}
	return fences
}

func insideFence(pos int, fences []span) (span, bool) {
	for _, f := range fences {
		if pos > f.start && pos < f.end {
			return f, true
		}
	}
	return span{}, false
}

// splitByRules walks content producing pieces no longer than chunkSize,
// except when an indivisible fence forces a larger piece.
func splitByRules(content string, chunkSize int, fences []span) []string {
	var pieces []string
	pos := 0
	n := len(content)

	for pos < n {
		idealEnd := pos + chunkSize
		if idealEnd >= n {
			pieces = append(pieces, content[pos:n])
			break
		}

		end := idealEnd
		if fence, ok := insideFence(idealEnd, fences); ok {
			end = fence.end
		} else {
			end = chooseBoundary(content, pos, idealEnd, fences)
		}

		if end <= pos {
			end = idealEnd // guard against pathological zero-progress loops
		}
		pieces = append(pieces, content[pos:end])
		pos = end
	}
	return pieces
}

// chooseBoundary finds the best split point in (start, idealEnd], trying
// heading, blank line, sentence end, word end, in that order, and skipping
// any candidate that falls inside a fence.
func chooseBoundary(content string, start, idealEnd int, fences []span) int {
	window := content[start:idealEnd]

	if loc := lastMatchOutsideFences(headingLinePattern, window, start, fences); loc > start {
		return loc
	}
	if idx := strings.LastIndex(window, "\n\n"); idx > 0 {
		candidate := start + idx + 2
		if _, inside := insideFence(candidate, fences); !inside {
			return candidate
		}
	}
	if loc := lastMatchOutsideFences(sentenceEndPattern, window, start, fences); loc > start {
		return loc
	}
	if idx := strings.LastIndexAny(window, " \t\n"); idx > 0 {
		candidate := start + idx + 1
		if _, inside := insideFence(candidate, fences); !inside {
			return candidate
		}
	}
	return idealEnd
}

func lastMatchOutsideFences(re *regexp.Regexp, window string, offset int, fences []span) int {
	matches := re.FindAllStringIndex(window, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		candidate := offset + matches[i][0]
		if _, inside := insideFence(candidate, fences); !inside {
			return candidate
		}
	}
	return -1
}
