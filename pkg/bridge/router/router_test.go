package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
)

type fakeRegistry struct{ rm *bridge.RouteMap }

func (f *fakeRegistry) Snapshot() *bridge.RouteMap { return f.rm }

type fakeSessions struct {
	sessions map[string]session.Session
}

func (f *fakeSessions) Session(name string) (session.Session, bool) {
	s, ok := f.sessions[name]
	return s, ok
}

type fakeSession struct{ result session.Result }

func (f *fakeSession) Initialize(context.Context) (session.ServerInfo, error) { return session.ServerInfo{}, nil }
func (f *fakeSession) ListCapabilities(context.Context, bridge.CapabilityKind) ([]bridge.Capability, error) {
	return nil, nil
}
func (f *fakeSession) Call(context.Context, bridge.CapabilityKind, string, map[string]any) (session.Result, error) {
	return f.result, nil
}
func (f *fakeSession) Ping(context.Context) error { return nil }
func (f *fakeSession) Close() error               { return nil }

func TestTerminal_Dispatch_Success(t *testing.T) {
	t.Parallel()

	rm := bridge.NewRouteMap([]bridge.Capability{
		{Kind: bridge.KindTool, ExposedName: "gh_search", OriginalName: "search", Backend: "gh"},
	})
	want := session.Result{Tool: &bridge.ToolCallResult{Content: []bridge.Content{{Type: "text", Text: "ok"}}}}
	sessions := &fakeSessions{sessions: map[string]session.Session{"gh": &fakeSession{result: want}}}

	term := New(&fakeRegistry{rm: rm}, sessions)
	got, err := term.Dispatch(context.Background(), Request{Method: bridge.KindTool, ExposedName: "gh_search"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTerminal_Dispatch_CapabilityNotFound(t *testing.T) {
	t.Parallel()

	rm := bridge.NewRouteMap(nil)
	term := New(&fakeRegistry{rm: rm}, &fakeSessions{sessions: map[string]session.Session{}})
	_, err := term.Dispatch(context.Background(), Request{Method: bridge.KindTool, ExposedName: "missing"})
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindCapabilityNotFound, bridgeerrors.Classify(err))
}

func TestTerminal_Dispatch_BackendUnavailable(t *testing.T) {
	t.Parallel()

	rm := bridge.NewRouteMap([]bridge.Capability{
		{Kind: bridge.KindTool, ExposedName: "gh_search", OriginalName: "search", Backend: "gh"},
	})
	term := New(&fakeRegistry{rm: rm}, &fakeSessions{sessions: map[string]session.Session{}})
	_, err := term.Dispatch(context.Background(), Request{Method: bridge.KindTool, ExposedName: "gh_search"})
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindBackendUnavailable, bridgeerrors.Classify(err))
}
