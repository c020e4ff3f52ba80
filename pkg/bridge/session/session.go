// Package session implements the backend session contract (spec.md §4.1):
// one live connection per backend descriptor, abstracting stdio,
// server-sent-events, and streamable-HTTP transports behind a single
// five-operation interface.
//
// Grounded on _examples/stacklok-toolhive/pkg/vmcp/client's test suite
// (client_test.go, pool_test.go, pooled_client_test.go): the teacher wraps
// github.com/mark3labs/mcp-go's client package per transport behind a
// `BackendClient` contract; this package keeps that shape but narrows it to
// the five operations spec.md names (initialize/list_capabilities/call/
// ping/close) instead of the teacher's wider discovery-oriented interface,
// since aggregation, filtering, and rename-bookkeeping live one layer up in
// pkg/bridge/aggregator here.
package session

import (
	"context"
	"time"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// ServerInfo is the minimal handshake result the bridge needs to record
// about a backend beyond its phase — currently just enough to log and
// surface on the management API.
type ServerInfo struct {
	Name    string
	Version string
}

// Session is the contract every transport implementation satisfies. Every
// method that crosses process/network boundaries takes a context and must
// honor its deadline (spec.md §4.1's cancellation requirement).
type Session interface {
	// Initialize performs the protocol handshake. Must complete within the
	// configured init timeout or the caller fails the backend.
	Initialize(ctx context.Context) (ServerInfo, error)

	// ListCapabilities fetches the raw, unfiltered catalog for one kind.
	ListCapabilities(ctx context.Context, kind bridge.CapabilityKind) ([]bridge.Capability, error)

	// Call dispatches a single request and awaits its correlated response.
	// name is the backend's original name (post-routing-terminal
	// translation); args is the raw argument bag.
	Call(ctx context.Context, kind bridge.CapabilityKind, name string, args map[string]any) (Result, error)

	// Ping performs a cheap liveness round-trip for the health monitor.
	Ping(ctx context.Context) error

	// Close releases underlying I/O resources. Idempotent.
	Close() error
}

// Result is the transport-agnostic outcome of Call, narrowed by the
// routing terminal into the MCP-specific result shape (ToolCallResult /
// ResourceReadResult / PromptGetResult) for the given kind.
type Result struct {
	Tool     *bridge.ToolCallResult
	Resource *bridge.ResourceReadResult
	Prompt   *bridge.PromptGetResult
}

// Factory builds a Session for one backend descriptor. There is one
// implementation per transport kind (NewStdioSession, NewSSESession,
// NewStreamableHTTPSession); the client manager selects among them by
// descriptor.Transport.
type Factory func(ctx context.Context, descriptor bridge.BackendDescriptor) (Session, error)

// defaultMaxOutstanding is the per-session concurrent-request cap spec.md
// §5 names. Both transports construct their limiter with this value; no
// configuration setting changes it.
const defaultMaxOutstanding = 64

// limiter bounds the number of concurrent outstanding Call invocations a
// session allows, per spec.md §5's backpressure policy: a full limiter
// makes new callers wait up to their remaining deadline, then fail with
// backend_overloaded.
type limiter struct {
	slots chan struct{}
}

func newLimiter(max int) *limiter {
	if max <= 0 {
		max = defaultMaxOutstanding
	}
	return &limiter{slots: make(chan struct{}, max)}
}

// acquire blocks until a slot frees or ctx is done. The returned release
// func must be called exactly once on success.
func (l *limiter) acquire(ctx context.Context) (release func(), overloaded bool) {
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, false
	case <-ctx.Done():
		return func() {}, true
	}
}

// effectiveDeadline keeps ctx's own deadline when it has one and otherwise
// applies fallback. No transport implementation in this package calls it.
func effectiveDeadline(ctx context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, fallback)
}
