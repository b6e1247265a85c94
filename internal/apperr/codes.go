// Package apperr provides structured, vendor-neutral error handling shared
// across every Archon component: a typed Kind, HTTP/JSON-RPC mapping,
// redaction of API-key-shaped substrings, and retry classification.
package apperr

// Kind classifies an error for recovery purposes. Recovery behavior is
// attached to the kind, not to any individual call site.
type Kind string

const (
	// KindValidation covers bad input, bad globs, dangerous URLs. 400, not retried.
	KindValidation Kind = "VALIDATION"
	// KindNotFound covers missing resources. 404, not retried.
	KindNotFound Kind = "NOT_FOUND"
	// KindProviderAuth covers rejected credentials against an embedding/LLM provider.
	// Surfaced, not retried; the owning operation is marked error.
	KindProviderAuth Kind = "PROVIDER_AUTH"
	// KindProviderTransient covers HTTP 5xx and timeouts from a provider.
	// Retried with backoff, then the affected item is marked failed.
	KindProviderTransient Kind = "PROVIDER_TRANSIENT"
	// KindProviderRateLimit covers HTTP 429. Retried honouring Retry-After
	// or falling back to exponential backoff.
	KindProviderRateLimit Kind = "PROVIDER_RATE_LIMIT"
	// KindPartialBatchFailure covers a batch call where some items failed.
	// Recorded per-item; the operation continues.
	KindPartialBatchFailure Kind = "PARTIAL_BATCH_FAILURE"
	// KindStore covers persistence-layer failures. Retried once, then propagated.
	KindStore Kind = "STORE"
	// KindCancelled is a clean terminal state, not an error to the caller
	// who requested cancellation.
	KindCancelled Kind = "CANCELLED"
	// KindConflict covers a request that collides with in-progress state,
	// e.g. a second concurrent re-embed job. 409, not retried.
	KindConflict Kind = "CONFLICT"
	// KindInternal covers anything unexpected. 500 with a correlation id;
	// details are logged, never returned.
	KindInternal Kind = "INTERNAL"
)

// Severity mirrors Kind into an operational alert level for logging.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

func severityForKind(k Kind) Severity {
	switch k {
	case KindInternal, KindStore:
		return SeverityFatal
	case KindProviderTransient, KindProviderRateLimit, KindPartialBatchFailure:
		return SeverityWarning
	case KindCancelled:
		return SeverityInfo
	default:
		return SeverityError
	}
}

func retryableForKind(k Kind) bool {
	switch k {
	case KindProviderTransient, KindProviderRateLimit, KindStore:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the HTTP status code a Kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindProviderAuth:
		return 401
	case KindProviderRateLimit:
		return 429
	case KindCancelled, KindConflict:
		return 409
	case KindProviderTransient, KindStore, KindPartialBatchFailure:
		return 502
	default:
		return 500
	}
}
