// Package codeextract pulls fenced code blocks out of a markdown document
// into CodeExample candidates, filtering prose and deduplicating bodies,
// per spec.md §4.5.
package codeextract

import (
	"crypto/sha256"
	"encoding/hex"
	"html"
	"regexp"
	"strings"
)

const (
	// maxRecursionDepth bounds the pathological nested-fence recovery.
	maxRecursionDepth = 3

	// proseRatioThreshold drops a block whose lines read like prose rather
	// than code.
	proseRatioThreshold = 0.6

	contextWindowMinLines = 2
	contextWindowMaxLines = 5
)

var (
	fenceOpenPattern  = regexp.MustCompile("^```([A-Za-z0-9_+.-]*)$")
	fenceClosePattern = regexp.MustCompile("^```$")
	sentenceEndRune   = regexp.MustCompile(`[.!?]\s*$`)
)

// Example is one extracted code block with its surrounding markdown context.
type Example struct {
	Code          string
	Language      string
	ContextBefore string
	ContextAfter  string
}

// Extract scans markdown for fenced code blocks at least minLength bytes
// long, dropping prose-like blocks and near-duplicate bodies.
func Extract(markdown string, minLength int) []Example {
	lines := strings.Split(markdown, "\n")
	examples := extractFromLines(lines, minLength, 0)
	return dedupe(examples)
}

func extractFromLines(lines []string, minLength, depth int) []Example {
	if depth > maxRecursionDepth {
		return nil
	}

	var examples []Example
	i := 0
	for i < len(lines) {
		openMatch := fenceOpenPattern.FindStringSubmatch(lines[i])
		if openMatch == nil {
			i++
			continue
		}

		language := strings.ToLower(openMatch[1])
		fenceStart := i
		closeIdx := -1
		for j := i + 1; j < len(lines); j++ {
			if fenceClosePattern.MatchString(lines[j]) {
				closeIdx = j
				break
			}
		}
		if closeIdx == -1 {
			// unterminated fence: treat the rest of the document as the body
			closeIdx = len(lines)
		}

		bodyLines := lines[fenceStart+1 : closeIdx]
		code := strings.Join(bodyLines, "\n")

		if looksLikeNestedMalformedFence(code) {
			examples = append(examples, extractFromLines(bodyLines, minLength, depth+1)...)
			i = closeIdx + 1
			continue
		}

		if len(code) >= minLength && !isProse(bodyLines) {
			examples = append(examples, Example{
				Code:          normalizeEntities(code),
				Language:      language,
				ContextBefore: contextWindow(lines, fenceStart, -1),
				ContextAfter:  contextWindow(lines, closeIdx, 1),
			})
		}

		i = closeIdx + 1
	}
	return examples
}

// looksLikeNestedMalformedFence detects a backtick-tagged line inside the
// body suggesting an inner, improperly closed fence (e.g. "```X`").
func looksLikeNestedMalformedFence(code string) bool {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "`") && !strings.HasSuffix(trimmed, "```") {
			return true
		}
	}
	return false
}

// isProse estimates whether a code body actually reads like prose: most
// lines end in sentence punctuation and contain no code-like tokens.
func isProse(lines []string) bool {
	if len(lines) == 0 {
		return false
	}
	var proseLines int
	var counted int
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		counted++
		if sentenceEndRune.MatchString(trimmed) && !looksLikeCode(trimmed) {
			proseLines++
		}
	}
	if counted == 0 {
		return false
	}
	return float64(proseLines)/float64(counted) > proseRatioThreshold
}

func looksLikeCode(line string) bool {
	codeTokens := []string{"{", "}", "(", ")", ";", "=>", "::", "->", "func ", "def ", "class ", "import ", "const ", "let ", "var "}
	for _, tok := range codeTokens {
		if strings.Contains(line, tok) {
			return true
		}
	}
	return false
}

// normalizeEntities decodes HTML entities iteratively so triple-encoded
// sequences collapse fully.
func normalizeEntities(s string) string {
	for i := 0; i < 3; i++ {
		decoded := html.UnescapeString(s)
		if decoded == s {
			break
		}
		s = decoded
	}
	return s
}

func contextWindow(lines []string, boundary, direction int) string {
	var window []string
	if direction < 0 {
		start := boundary - contextWindowMaxLines
		if start < 0 {
			start = 0
		}
		window = lines[start:boundary]
		if len(window) > contextWindowMaxLines {
			window = window[len(window)-contextWindowMaxLines:]
		}
	} else {
		end := boundary + 1 + contextWindowMaxLines
		if end > len(lines) {
			end = len(lines)
		}
		start := boundary + 1
		if start > len(lines) {
			start = len(lines)
		}
		window = lines[start:end]
	}
	_ = contextWindowMinLines // context windows may be shorter near document edges
	return strings.TrimSpace(strings.Join(window, "\n"))
}

// dedupe collapses near-identical bodies using a normalized-whitespace
// hash, keeping the first occurrence and its context.
func dedupe(examples []Example) []Example {
	seen := make(map[string]bool, len(examples))
	out := make([]Example, 0, len(examples))
	for _, ex := range examples {
		key := whitespaceHash(ex.Code)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ex)
	}
	return out
}

func whitespaceHash(code string) string {
	normalized := strings.Join(strings.Fields(code), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
