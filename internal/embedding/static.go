package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/archon-iirc/archon/internal/apperr"
)

// StaticDimensions is the width produced by StaticProvider: deterministic,
// hash-based, no network dependency. Used for tests and for offline/local
// deployments that have not configured a real embedding credential.
const StaticDimensions = 768

var (
	programmingStopWords = map[string]bool{
		"func": true, "function": true, "def": true, "class": true,
		"return": true, "import": true, "const": true, "var": true,
		"let": true, "int": true, "string": true, "bool": true,
		"void": true, "true": true, "false": true, "nil": true,
		"null": true, "this": true, "self": true, "new": true,
	}
	tokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)
)

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// StaticProvider is a hash-based Provider with no external dependency. It
// lets the ingest pipeline and search engine run deterministically in tests
// and in offline mode.
type StaticProvider struct {
	mu     sync.RWMutex
	closed bool
}

func NewStaticProvider() *StaticProvider { return &StaticProvider{} }

var _ Provider = (*StaticProvider)(nil)

func (e *StaticProvider) embedOne(text string) []float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions)
	}
	vector := make([]float32, StaticDimensions)

	for _, tok := range filterStopWords(tokenize(trimmed)) {
		vector[hashToIndex(tok, StaticDimensions)] += tokenWeight
	}
	normalized := normalizeForNgrams(trimmed)
	for _, ngram := range extractNgrams(normalized, ngramSize) {
		vector[hashToIndex(ngram, StaticDimensions)] += ngramWeight
	}
	return normalizeVector(vector)
}

func (e *StaticProvider) EmbedBatch(ctx context.Context, texts []string) (BatchResponse, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return BatchResponse{}, apperr.Internal("embedder is closed", nil)
	}

	results := make([]Result, len(texts))
	for i, text := range texts {
		results[i] = Result{Index: i, Embedding: e.embedOne(text), Dimension: StaticDimensions}
	}
	return BatchResponse{Results: results, Model: e.ModelName()}, nil
}

func (e *StaticProvider) Dimensions() int   { return StaticDimensions }
func (e *StaticProvider) ModelName() string { return "static-768" }
func (e *StaticProvider) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}
func (e *StaticProvider) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			if lower := strings.ToLower(t); lower != "" {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

func splitCamelCase(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	var current strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

func filterStopWords(tokens []string) []string {
	var filtered []string
	for _, t := range tokens {
		if !programmingStopWords[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func normalizeForNgrams(text string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func extractNgrams(text string, n int) []string {
	if len(text) < n {
		return []string{}
	}
	ngrams := make([]string, 0, len(text)-n+1)
	for i := 0; i <= len(text)-n; i++ {
		ngrams = append(ngrams, text[i:i+n])
	}
	return ngrams
}

func hashToIndex(s string, size int) int {
	h := fnv.New64()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
