package apperr

import (
	"fmt"
)

// Error is Archon's structured error type. It carries enough context for
// logging, HTTP/JSON-RPC translation, and per-item aggregation inside the
// ingest pipeline without leaking provider credentials.
type Error struct {
	// Kind classifies the error for recovery purposes.
	Kind Kind

	// Message is the human-readable, already-redacted message.
	Message string

	// Severity mirrors Kind into an operational log level.
	Severity Severity

	// Details contains additional context as key-value pairs (source_id,
	// url, item index, etc). Never put raw provider responses here.
	Details map[string]string

	// Cause is the underlying error, kept for errors.Is/As chains but never
	// surfaced directly across an API boundary.
	Cause error

	// Retryable indicates whether the operation that produced this error
	// may be retried as-is.
	Retryable bool

	// RetryAfterSeconds, when > 0, is the provider-supplied Retry-After hint
	// for KindProviderRateLimit errors.
	RetryAfterSeconds int
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, apperr.New(KindX, ...)) comparisons by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = Redact(value)
	return e
}

// New builds an Error of the given kind with an already-redacted message.
func New(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:      kind,
		Message:   Redact(message),
		Severity:  severityForKind(kind),
		Cause:     cause,
		Retryable: retryableForKind(kind),
	}
}

// Wrap lifts a plain error into an Error of the given kind.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return New(kind, err.Error(), err)
}

// RateLimited builds a KindProviderRateLimit error carrying the provider's
// Retry-After hint, or 0 if the provider did not send one.
func RateLimited(message string, retryAfterSeconds int, cause error) *Error {
	e := New(KindProviderRateLimit, message, cause)
	e.RetryAfterSeconds = retryAfterSeconds
	return e
}

func Validation(message string, cause error) *Error  { return New(KindValidation, message, cause) }
func NotFound(message string, cause error) *Error    { return New(KindNotFound, message, cause) }
func Store(message string, cause error) *Error       { return New(KindStore, message, cause) }
func Internal(message string, cause error) *Error    { return New(KindInternal, message, cause) }
func Cancelled(message string, cause error) *Error   { return New(KindCancelled, message, cause) }
func Conflict(message string, cause error) *Error    { return New(KindConflict, message, cause) }
func ProviderAuth(message string, cause error) *Error {
	return New(KindProviderAuth, message, cause)
}
func ProviderTransient(message string, cause error) *Error {
	return New(KindProviderTransient, message, cause)
}

// IsRetryable reports whether err, if an *Error, is safe to retry as-is.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// IsCancelled reports whether err represents a clean, caller-requested
// cancellation rather than a failure.
func IsCancelled(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == KindCancelled
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal for plain errors.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
