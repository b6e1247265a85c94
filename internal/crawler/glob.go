package crawler

import (
	"regexp"
	"strings"
	"sync"

	"github.com/archon-iirc/archon/internal/apperr"
)

// globCache avoids recompiling the same include/exclude pattern on every
// candidate URL during a crawl.
var globCache sync.Map // pattern string -> *regexp.Regexp

// maxGlobPatterns and maxGlobPatternLength bound the include/exclude lists
// a caller may supply, per spec.md §8's glob-sanitisation property.
const (
	maxGlobPatterns      = 50
	maxGlobPatternLength = 200
)

// safeGlobPattern allows only the characters a glob needs: alphanumerics,
// path separators, and the handful of glob/alternation metacharacters.
// Backticks, `$`, `;`, `|`, control characters, and anything else that could
// be interpreted by a shell or injected into another context are rejected.
var safeGlobPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_/*?.{},]+$`)

// sanitizeGlobPatterns validates a caller-supplied include/exclude list
// before any of it reaches compileGlob or does any I/O, per spec.md §7's
// rule that sanitisation errors are raised before any I/O. It rejects
// oversized lists, oversized patterns, disallowed characters, and path
// traversal attempts, and trims/drops blank entries otherwise.
func sanitizeGlobPatterns(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	if len(patterns) > maxGlobPatterns {
		return nil, apperr.Validation("too many glob patterns (max 50)", nil)
	}

	sanitized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if len(pattern) > maxGlobPatternLength {
			return nil, apperr.Validation("glob pattern too long (max 200 characters)", nil)
		}
		if strings.Contains(pattern, "..") {
			return nil, apperr.Validation("glob pattern must not contain path traversal (..)", nil)
		}
		if !safeGlobPattern.MatchString(pattern) {
			return nil, apperr.Validation("glob pattern contains disallowed characters", nil)
		}
		sanitized = append(sanitized, pattern)
	}
	return sanitized, nil
}

// matchesGlob applies Unix glob semantics where "*" matches any characters
// including "/", unlike filepath.Match.
func matchesGlob(pattern, path string) bool {
	re := compileGlob(pattern)
	return re.MatchString(path)
}

func compileGlob(pattern string) *regexp.Regexp {
	if cached, ok := globCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}

	var sb strings.Builder
	sb.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")

	re := regexp.MustCompile(sb.String())
	globCache.Store(pattern, re)
	return re
}

// allowedByGlobs applies spec.md §4.2's rule: exclude beats include; if
// includes is non-empty, at least one must match. Callers must sanitize
// includes/excludes with sanitizeGlobPatterns before Crawl starts.
func allowedByGlobs(path string, includes, excludes []string) bool {
	for _, ex := range excludes {
		if matchesGlob(ex, path) {
			return false
		}
	}
	if len(includes) == 0 {
		return true
	}
	for _, inc := range includes {
		if matchesGlob(inc, path) {
			return true
		}
	}
	return false
}
