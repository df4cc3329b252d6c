package driven

import "fmt"

// UpstreamError indicates GitHub returned a non-success status for a request.
// It is surfaced to the caller as-is; no retry happens at the adapter layer.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github api error: status %d: %s", e.StatusCode, e.Message)
}

// TransportError indicates the request never produced a GitHub response
// (network failure, timeout, canceled context).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("github transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
