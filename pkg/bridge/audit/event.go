// Package audit implements the typed audit channel described in spec.md
// §4.10: immutable structured records for every request the bridge
// services, written to a rotating sink independent of the operator log.
//
// Grounded on _examples/stacklok-toolhive/pkg/audit (mcp_events.go's event
// kind/field-key taxonomy, and the NewAuditEvent/WithTarget/WithData fluent
// builder shape visible in event_test.go): this package keeps the
// teacher's fluent-builder event shape but replaces its free-form
// string-typed event kind and HTTP-derived fields with the bridge's closed
// set of MCP-aggregation event kinds and source/target/outcome structs
// named directly in spec.md §4.10.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of audit event kinds spec.md §4.10 names.
type Kind string

const (
	KindMCPOperation      Kind = "mcp_operation"
	KindCapabilityDropped Kind = "capability_dropped"
	KindBackendTransition Kind = "backend_transition"
	KindAuthFailure       Kind = "auth_failure"
	KindReload            Kind = "reload"
)

// Source identifies who made the request the event describes.
type Source struct {
	SessionID     string `json:"session_id,omitempty"`
	ClientAddress string `json:"client_address,omitempty"`
	Subject       string `json:"subject,omitempty"`
}

// Target identifies what the request was aimed at.
type Target struct {
	Backend      string `json:"backend,omitempty"`
	Method       string `json:"method,omitempty"`
	ExposedName  string `json:"exposed_name,omitempty"`
	OriginalName string `json:"original_name,omitempty"`
}

// Outcome records how the request concluded.
type Outcome struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
}

// Event is one immutable audit record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      Kind           `json:"kind"`
	Source    Source         `json:"source"`
	Target    Target         `json:"target"`
	Outcome   Outcome        `json:"outcome"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent stamps a fresh event with a random 128-bit ID and the current
// UTC timestamp, per spec.md §4.10's "UTC timestamp, event ID (128-bit
// random)" field list.
func NewEvent(kind Kind) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
	}
}

// WithSource sets the event's source and returns the receiver for chaining.
func (e *Event) WithSource(source Source) *Event {
	e.Source = source
	return e
}

// WithTarget sets the event's target and returns the receiver for chaining.
func (e *Event) WithTarget(target Target) *Event {
	e.Target = target
	return e
}

// WithOutcome sets the event's outcome and returns the receiver for chaining.
func (e *Event) WithOutcome(outcome Outcome) *Event {
	e.Outcome = outcome
	return e
}

// WithMetadata attaches a free-form metadata bag and returns the receiver
// for chaining.
func (e *Event) WithMetadata(metadata map[string]any) *Event {
	e.Metadata = metadata
	return e
}
