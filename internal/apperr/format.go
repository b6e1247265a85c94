package apperr

import (
	"encoding/json"
)

// jsonError is the wire representation used by the HTTP API and JSON-RPC error data.
type jsonError struct {
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Severity  string            `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable"`
}

// FormatJSON renders err as a redacted JSON object suitable for an API response.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	e, ok := err.(*Error)
	if !ok {
		e = Internal("internal error", err)
	}
	return json.Marshal(jsonError{
		Kind:      string(e.Kind),
		Message:   e.Message,
		Severity:  string(e.Severity),
		Details:   e.Details,
		Retryable: e.Retryable,
	})
}

// FormatForLog returns key-value pairs suitable for slog attributes.
// It never includes the raw Cause error, which may hold unredacted text.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": Redact(err.Error())}
	}
	result := map[string]any{
		"kind":      string(e.Kind),
		"message":   e.Message,
		"severity":  string(e.Severity),
		"retryable": e.Retryable,
	}
	for k, v := range e.Details {
		result["detail_"+k] = v
	}
	return result
}
