package soap

import "fmt"

// TransportError indicates the exchange failed before a SOAP-level response
// was obtained: connection failures, timeouts, or an HTTP error status with
// no fault body.
type TransportError struct {
	Action  string
	Status  int // non-zero when the device answered with an HTTP error
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("soap action %s timed out", e.Action)
	case e.Status != 0:
		return fmt.Sprintf("soap action %s failed: http %d", e.Action, e.Status)
	default:
		return fmt.Sprintf("soap action %s unreachable: %v", e.Action, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fault is a well-formed SOAP fault returned by the device. Code and
// Description carry the UPnP error from the fault detail block when present,
// falling back to the bare faultcode/faultstring otherwise.
type Fault struct {
	Action      string
	FaultCode   string // e.g. s:Client
	FaultString string // e.g. UPnPError
	Code        string // e.g. 402
	Description string // e.g. Invalid Args
}

func (e *Fault) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("soap action %s rejected: code %s", e.Action, e.Code)
	}
	return fmt.Sprintf("soap action %s rejected: code %s (%s)", e.Action, e.Code, e.Description)
}

// MalformedError indicates the response body does not conform to the
// expected envelope structure at all.
type MalformedError struct {
	Action string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("soap action %s returned malformed response: %v", e.Action, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}
