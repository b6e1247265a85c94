package apperr

import "regexp"

// apiKeyPatterns matches substrings shaped like provider API keys so they
// never reach a log line or an HTTP response body.
var apiKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{10,}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["']?\s*[:=]\s*["']?[A-Za-z0-9_-]{10,}`),
}

// Redact scans s for API-key-shaped substrings and replaces them with a
// fixed placeholder. Applied to every error message before it is logged or
// returned across a component boundary.
func Redact(s string) string {
	for _, p := range apiKeyPatterns {
		s = p.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}
