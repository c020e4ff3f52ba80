// Package errors defines the closed taxonomy of failure kinds the bridge
// can produce, and the JSON-RPC code assigned to each (see Error.Code).
//
// Every inner layer of the middleware chain signals failure by returning a
// *Error value. Inner layers never panic for expected conditions — panics
// are reserved for violated invariants, and the recovery middleware (the
// outermost layer) turns those into Internal. The frontend gateway does
// not apply Error.Code: a failed tool call becomes an error tool result
// carrying the error text, and prompt and resource failures are handed to
// mcp-go as plain errors.
package errors

import "fmt"

// Kind is the closed set of failure kinds a request can fail with.
type Kind string

// Failure kinds, matching the taxonomy table in the specification.
const (
	KindInvalidRequest      Kind = "invalid_request"
	KindCapabilityNotFound  Kind = "capability_not_found"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindBackendUnavailable  Kind = "backend_unavailable"
	KindBackendOverloaded   Kind = "backend_overloaded"
	KindTimeout             Kind = "timeout"
	KindBackendError        Kind = "backend_error"
	KindTransportFailure    Kind = "transport_failure"
	KindInvalidResponse     Kind = "invalid_response"
	KindCancelled           Kind = "cancelled"
	KindInternal            Kind = "internal"
)

// codes maps each Kind to its user-visible JSON-RPC error code.
// KindBackendError is intentionally absent: it passes its originating
// backend code through unchanged.
var codes = map[Kind]int{
	KindInvalidRequest:     -32600,
	KindCapabilityNotFound: -32601,
	KindUnauthenticated:    -32001,
	KindForbidden:          -32002,
	KindBackendUnavailable: -32003,
	KindBackendOverloaded:  -32004,
	KindTimeout:            -32005,
	KindTransportFailure:   -32006,
	KindInvalidResponse:    -32007,
	KindCancelled:          -32800,
	KindInternal:           -32603,
}

// Error is the bridge's structured error value. It carries enough context
// for the audit trail without leaking internals to the wire: BackendName
// and Cause are for the audit record and operator log, never rendered
// verbatim to the client.
type Error struct {
	Kind        Kind
	Message     string
	BackendName string
	Cause       error
}

// New creates an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error that records cause for the audit trail.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithBackend attaches the originating backend name, returning the receiver
// for chaining at the call site.
func (e *Error) WithBackend(name string) *Error {
	e.BackendName = name
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Code returns the JSON-RPC error code for the receiver's kind. For
// KindBackendError, ok is false: the caller must pass the backend's own
// code through instead of substituting one.
func (e *Error) Code() (code int, ok bool) {
	if e.Kind == KindBackendError {
		return 0, false
	}
	c, found := codes[e.Kind]
	return c, found
}

// Classify returns the Kind of err if it is (or wraps) an *Error, and
// KindInternal otherwise — the default for anything the bridge did not
// itself construct as a structured failure.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return KindInternal
}

// asError is a small local errors.As to avoid importing the standard
// library package under the same name as this one.
func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return asError(err, &e) && e.Kind == kind
}
