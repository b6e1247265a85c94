package llm

import "strings"

// isAuthError and isRateLimitError do coarse string classification of a
// redacted vendor error message. Every adapter's SDK surfaces these as plain
// HTTP-status-derived error strings rather than a shared typed hierarchy, so
// this is the common ground across anthropic-sdk-go, aws-sdk-go-v2 and
// langchaingo's Ollama client.
func isAuthError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "authentication") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "accessdenied")
}

func isRateLimitError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "throttl")
}
