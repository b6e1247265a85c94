package llm

import "github.com/archon-iirc/archon/internal/apperr"

// UnknownProviderError builds the validation error raised when a caller
// names a provider absent from SelectionTable.
func UnknownProviderError(name string) error {
	return apperr.Validation("unknown LLM provider: "+name, nil)
}
