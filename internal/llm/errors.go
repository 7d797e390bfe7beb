package llm

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a provider is selected but disabled
// or missing its API key. The router treats it as a silent local fallback.
var ErrNotConfigured = errors.New("provider not configured")

// TransportError indicates the network call itself failed.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError indicates the provider answered with a non-success status.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.Status, e.Body)
}

// MalformedResponseError indicates the reply text could not be extracted
// from the provider's response payload.
type MalformedResponseError struct {
	Provider string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}
