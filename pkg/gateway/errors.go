package gateway

import "fmt"

// TransportError is a failed provider or network call. The request
// never produced a usable response; the user may simply retry.
type TransportError struct {
	Intent string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend call failed (%s): %v", e.Intent, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedError is a response that arrived but did not match the
// intent's contract. User-visible handling is identical to a transport
// failure; it is logged distinctly for diagnosis.
type MalformedError struct {
	Intent string
	Detail string
	Err    error
}

func (e *MalformedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %s: %v", e.Intent, e.Detail, e.Err)
	}
	return fmt.Sprintf("malformed %s response: %s", e.Intent, e.Detail)
}

func (e *MalformedError) Unwrap() error { return e.Err }
