// Package router implements the routing terminal (spec.md §4.8): the
// innermost middleware layer that resolves an exposed capability name to
// a (backend, original name) pair via the capability registry, obtains the
// live backend session from the client manager, and forwards the call.
package router

import (
	"context"
	"fmt"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
)

// Registry is the subset of bridge.Registry the router needs.
type Registry interface {
	Snapshot() *bridge.RouteMap
}

// Sessions is the subset of the client manager the router needs.
type Sessions interface {
	Session(name string) (session.Session, bool)
}

// Request is the decorated inbound call the middleware chain hands the
// terminal, after identity/authz have already run.
type Request struct {
	Method      bridge.CapabilityKind
	ExposedName string
	Args        map[string]any
	// Snapshot, if non-nil, pins resolution to a specific RouteMap — the
	// per-upstream-session frozen view spec.md §4.12 describes for
	// list_tools consistency. When nil, the terminal reads the registry's
	// current snapshot, which is always correct for call_tool/
	// read_resource/get_prompt (spec.md: "live routing uses the current
	// map").
	Snapshot *bridge.RouteMap
}

// Terminal is the routing terminal.
type Terminal struct {
	registry Registry
	sessions Sessions
}

// New returns a Terminal reading routes from registry and sessions from
// sessions.
func New(registry Registry, sessions Sessions) *Terminal {
	return &Terminal{registry: registry, sessions: sessions}
}

// Dispatch resolves req and forwards it to the backend, translating the
// exposed name back to the backend's original name per spec.md's
// Exposed-name/Original-name glossary pair.
func (t *Terminal) Dispatch(ctx context.Context, req Request) (session.Result, error) {
	switch req.Method {
	case bridge.KindTool, bridge.KindResource, bridge.KindPrompt:
	default:
		return session.Result{}, bridgeerrors.New(bridgeerrors.KindInvalidRequest, fmt.Sprintf("unsupported method %q", req.Method))
	}

	rm := req.Snapshot
	if rm == nil {
		rm = t.registry.Snapshot()
	}
	entry, found := rm.Resolve(req.Method, req.ExposedName)
	if !found {
		return session.Result{}, bridgeerrors.New(bridgeerrors.KindCapabilityNotFound, fmt.Sprintf("no capability named %q", req.ExposedName))
	}

	sess, routable := t.sessions.Session(entry.Backend)
	if !routable {
		return session.Result{}, bridgeerrors.New(bridgeerrors.KindBackendUnavailable, fmt.Sprintf("backend %q is not routable", entry.Backend)).WithBackend(entry.Backend)
	}

	result, err := sess.Call(ctx, req.Method, entry.OriginalName, req.Args)
	if err != nil {
		return session.Result{}, err
	}
	return result, nil
}
