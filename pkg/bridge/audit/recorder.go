package audit

import (
	"context"
	"time"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

// Recorder is the audit middleware's entry point: one method per event
// kind spec.md §4.10 names, each building the typed Event and handing it
// to the configured Sink. A disabled Recorder is a true no-op (the audit
// middleware layer is omitted entirely when audit.enabled is false, per
// spec.md §9 — this type exists so callers that do hold one never need a
// nil check).
type Recorder struct {
	sink Sink
}

// NewRecorder wraps sink. A nil sink makes every Record* call a no-op,
// used when audit.enabled is false.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Dropped returns the underlying sink's overflow-drop count, or 0 if the
// recorder has no sink.
func (r *Recorder) Dropped() uint64 {
	if r == nil || r.sink == nil {
		return 0
	}
	return r.sink.Dropped()
}

// Close releases the underlying sink, if any.
func (r *Recorder) Close() error {
	if r == nil || r.sink == nil {
		return nil
	}
	return r.sink.Close()
}

func (r *Recorder) record(ctx context.Context, event *Event) {
	if r == nil || r.sink == nil {
		return
	}
	r.sink.Record(ctx, event)
}

// MCPOperation records one inbound request's outcome. err is nil on
// success; otherwise bridgeerrors.Classify and errorType fill the audit
// record's error_kind and error_type fields from it.
func (r *Recorder) MCPOperation(ctx context.Context, source Source, target Target, latency time.Duration, err error) {
	outcome := Outcome{Status: "success", LatencyMS: latency.Seconds() * 1000}
	if err != nil {
		outcome.Status = "error"
		outcome.ErrorKind = string(bridgeerrors.Classify(err))
		outcome.ErrorType = errorType(err)
	}
	r.record(ctx, NewEvent(KindMCPOperation).WithSource(source).WithTarget(target).WithOutcome(outcome))
}

// CapabilityDropped records one capability discarded by conflict
// resolution (spec.md §4.4's conflict-resolution audit requirement).
func (r *Recorder) CapabilityDropped(ctx context.Context, kind bridge.CapabilityKind, exposedName, backend, winningBackend string) {
	event := NewEvent(KindCapabilityDropped).
		WithTarget(Target{Backend: backend, ExposedName: exposedName, Method: string(kind)}).
		WithOutcome(Outcome{Status: "dropped"}).
		WithMetadata(map[string]any{"winning_backend": winningBackend})
	r.record(ctx, event)
}

// BackendTransition records one backend phase change.
func (r *Recorder) BackendTransition(ctx context.Context, backend string, from, to bridge.BackendPhase, reason string) {
	event := NewEvent(KindBackendTransition).
		WithTarget(Target{Backend: backend}).
		WithOutcome(Outcome{Status: string(to)}).
		WithMetadata(map[string]any{"from": string(from), "reason": reason})
	r.record(ctx, event)
}

// AuthFailure records a rejected request at the authentication layer.
func (r *Recorder) AuthFailure(ctx context.Context, source Source, reason string) {
	event := NewEvent(KindAuthFailure).
		WithSource(source).
		WithOutcome(Outcome{Status: "rejected", ErrorKind: string(bridgeerrors.KindUnauthenticated), ErrorType: reason})
	r.record(ctx, event)
}

// Reload records one reload coordinator run.
func (r *Recorder) Reload(ctx context.Context, added, removed, changed int, reloadErr error) {
	outcome := Outcome{Status: "success"}
	if reloadErr != nil {
		outcome.Status = "error"
		outcome.ErrorType = reloadErr.Error()
	}
	event := NewEvent(KindReload).
		WithOutcome(outcome).
		WithMetadata(map[string]any{"added": added, "removed": removed, "changed": changed})
	r.record(ctx, event)
}

// errorType extracts a coarse type tag for the audit record's
// error_type field, distinct from the taxonomy Kind: the backend name the
// error originated from, when the error carries one.
func errorType(err error) string {
	var e *bridgeerrors.Error
	if asErr, ok := err.(*bridgeerrors.Error); ok {
		e = asErr
	}
	if e != nil && e.BackendName != "" {
		return e.BackendName
	}
	return "generic"
}
