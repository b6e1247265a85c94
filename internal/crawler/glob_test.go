package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeGlobPatterns_AllowsOrdinaryPatterns(t *testing.T) {
	out, err := sanitizeGlobPatterns([]string{" /docs/*", "*.{js,ts}", "" })
	require.NoError(t, err)
	assert.Equal(t, []string{"/docs/*", "*.{js,ts}"}, out)
}

func TestSanitizeGlobPatterns_NilForEmptyInput(t *testing.T) {
	out, err := sanitizeGlobPatterns(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestSanitizeGlobPatterns_RejectsTooManyPatterns(t *testing.T) {
	patterns := make([]string, 51)
	for i := range patterns {
		patterns[i] = "/a"
	}
	_, err := sanitizeGlobPatterns(patterns)
	assert.Error(t, err)
}

func TestSanitizeGlobPatterns_RejectsOverlongPattern(t *testing.T) {
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	_, err := sanitizeGlobPatterns([]string{string(long)})
	assert.Error(t, err)
}

func TestSanitizeGlobPatterns_RejectsPathTraversal(t *testing.T) {
	_, err := sanitizeGlobPatterns([]string{"/docs/../secret"})
	assert.Error(t, err)
}

func TestSanitizeGlobPatterns_RejectsDangerousCharacters(t *testing.T) {
	for _, pattern := range []string{"`rm -rf /`", "$HOME/*", "/a;ls", "/a|b", "/a\x00b"} {
		_, err := sanitizeGlobPatterns([]string{pattern})
		assert.Errorf(t, err, "expected pattern %q to be rejected", pattern)
	}
}

func TestCrawl_RejectsMaliciousIncludeGlobBeforeAnyIO(t *testing.T) {
	// An unresolvable seed host would fail in guardURL's DNS lookup; glob
	// sanitisation must reject this request before that lookup ever runs.
	_, err := Crawl(context.Background(), "https://this-host-does-not-resolve.invalid", Options{IncludeGlobs: []string{"$(whoami)"}})
	assert.Error(t, err)
}
