package fetcher

import "fmt"

// TransportError reports a request that never produced a usable response:
// network failures, non-2xx statuses and unreadable bodies.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response whose body does not have the expected
// shape.
type ProtocolError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected response from %s: %s: %v", e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("unexpected response from %s: %s", e.URL, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
