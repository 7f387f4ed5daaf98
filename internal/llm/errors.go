package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError wraps a provider failure with the HTTP status it carried, when known.
// StatusCode is 0 for transport errors.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retryable reports whether a failed generation is worth another attempt. Context
// cancellation and client errors are final; 408 and 429 are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
			return true
		}
		if code >= 400 && code < 500 {
			return false
		}
	}
	return true
}
