package llm

import (
	"errors"
	"fmt"
)

// ErrConfiguration reports that no backend can serve a request. It is
// fatal and never retried.
var ErrConfiguration = errors.New("llm configuration error")

// ProviderError is a recoverable failure of a single model call: an HTTP
// error status, a transport failure, a timeout or an unusable answer.
type ProviderError struct {
	Provider   string
	Model      string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s model %s failed with status %d: %v", e.Provider, e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s model %s failed: %v", e.Provider, e.Model, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AllProvidersExhaustedError is returned when every routed model failed.
type AllProvidersExhaustedError struct {
	Attempts int
	Last     error
	All      error // every attempt, combined with multierr
}

func (e *AllProvidersExhaustedError) Error() string {
	return fmt.Sprintf("all %d llm models failed, last error: %v", e.Attempts, e.Last)
}

func (e *AllProvidersExhaustedError) Unwrap() error { return e.Last }
