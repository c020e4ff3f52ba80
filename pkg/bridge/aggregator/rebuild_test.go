package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
)

type rebuildFakeSession struct {
	tools []bridge.Capability
}

func (f *rebuildFakeSession) Initialize(context.Context) (session.ServerInfo, error) { return session.ServerInfo{}, nil }
func (f *rebuildFakeSession) ListCapabilities(_ context.Context, kind bridge.CapabilityKind) ([]bridge.Capability, error) {
	if kind == bridge.KindTool {
		return f.tools, nil
	}
	return nil, nil
}
func (f *rebuildFakeSession) Call(context.Context, bridge.CapabilityKind, string, map[string]any) (session.Result, error) {
	return session.Result{}, nil
}
func (f *rebuildFakeSession) Ping(context.Context) error { return nil }
func (f *rebuildFakeSession) Close() error                { return nil }

type rebuildFakeBackends struct {
	sessions    map[string]session.Session
	descriptors map[string]bridge.BackendDescriptor
	names       []string
}

func (b *rebuildFakeBackends) Names() []string { return b.names }
func (b *rebuildFakeBackends) Session(name string) (session.Session, bool) {
	s, ok := b.sessions[name]
	return s, ok
}
func (b *rebuildFakeBackends) Descriptor(name string) (bridge.BackendDescriptor, bool) {
	d, ok := b.descriptors[name]
	return d, ok
}

func TestRebuild_SkipsNonRoutableBackends(t *testing.T) {
	t.Parallel()

	backends := &rebuildFakeBackends{
		names: []string{"alpha", "beta"},
		sessions: map[string]session.Session{
			"alpha": &rebuildFakeSession{tools: []bridge.Capability{tool("search")}},
		},
		descriptors: map[string]bridge.BackendDescriptor{
			"alpha": {Name: "alpha"},
			"beta":  {Name: "beta"},
		},
	}

	caps, dropped, err := Rebuild(context.Background(), backends, bridge.ConflictFirstWins, "_", nil)
	require.NoError(t, err)
	assert.Empty(t, dropped)
	require.Len(t, caps, 1)
	assert.Equal(t, "alpha", caps[0].Backend)
}

func TestRebuild_AppliesFiltersPerBackend(t *testing.T) {
	t.Parallel()

	backends := &rebuildFakeBackends{
		names: []string{"alpha"},
		sessions: map[string]session.Session{
			"alpha": &rebuildFakeSession{tools: []bridge.Capability{tool("search"), tool("internal_admin")}},
		},
		descriptors: map[string]bridge.BackendDescriptor{
			"alpha": {Name: "alpha", Filters: map[bridge.CapabilityKind]bridge.FilterRules{
				bridge.KindTool: {Deny: []string{"internal_*"}},
			}},
		},
	}

	caps, _, err := Rebuild(context.Background(), backends, bridge.ConflictFirstWins, "_", nil)
	require.NoError(t, err)
	require.Len(t, caps, 1)
	assert.Equal(t, "search", caps[0].ExposedName)
}
