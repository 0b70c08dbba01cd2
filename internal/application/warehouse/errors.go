package warehouse

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport covers unreachable peers and non-2xx responses.
	ErrTransport = errors.New("warehouse: transport error")
	// ErrMalformedResponse covers unexpected content types and undecodable bodies.
	ErrMalformedResponse = errors.New("warehouse: malformed response")
	// ErrMissingOrderID means the order store returned nothing actionable.
	ErrMissingOrderID = errors.New("warehouse: missing order id")
)

// CallError describes a failed call to a peer service. Err is one of the
// sentinels above, possibly joined with the underlying cause.
type CallError struct {
	Peer       string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Peer, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Peer, e.Endpoint, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
