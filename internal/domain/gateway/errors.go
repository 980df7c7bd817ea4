package gateway

import "fmt"

// ProtocolError is a structured failure returned by the gateway. It is
// surfaced to the caller verbatim and never retried automatically.
type ProtocolError struct {
	Status  string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("gateway rejected request: %s (%s)", e.Message, e.Status)
}

// TransportError is a network-level failure. When Ambiguous is true the
// request may have reached the gateway before the failure, so the outcome of
// a non-idempotent operation is unknown; such calls must not be blindly
// retried and are escalated for reconciliation or manual review.
type TransportError struct {
	Op        string
	Ambiguous bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("gateway %s: ambiguous transport failure, outcome unknown: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
