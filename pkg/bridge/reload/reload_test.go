package reload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
)

type fakeSession struct {
	tools []bridge.Capability
}

func (f *fakeSession) Initialize(context.Context) (session.ServerInfo, error) {
	return session.ServerInfo{}, nil
}
func (f *fakeSession) ListCapabilities(_ context.Context, kind bridge.CapabilityKind) ([]bridge.Capability, error) {
	if kind == bridge.KindTool {
		return f.tools, nil
	}
	return nil, nil
}
func (f *fakeSession) Call(context.Context, bridge.CapabilityKind, string, map[string]any) (session.Result, error) {
	return session.Result{}, nil
}
func (f *fakeSession) Ping(context.Context) error { return nil }
func (f *fakeSession) Close() error                { return nil }

func tool(name string) bridge.Capability {
	return bridge.Capability{Kind: bridge.KindTool, ExposedName: name, OriginalName: name}
}

type fakeManager struct {
	descriptors map[string]bridge.BackendDescriptor
	sessions    map[string]session.Session
	started     []bridge.BackendDescriptor
	removed     []string
	startErr    error
}

func (m *fakeManager) Names() []string {
	var names []string
	for name := range m.descriptors {
		names = append(names, name)
	}
	return names
}

func (m *fakeManager) Descriptor(name string) (bridge.BackendDescriptor, bool) {
	d, ok := m.descriptors[name]
	return d, ok
}

func (m *fakeManager) Session(name string) (session.Session, bool) {
	s, ok := m.sessions[name]
	return s, ok
}

func (m *fakeManager) StartAll(_ context.Context, descriptors []bridge.BackendDescriptor) error {
	if m.startErr != nil {
		return m.startErr
	}
	for _, d := range descriptors {
		m.descriptors[d.Name] = d
		m.sessions[d.Name] = &fakeSession{tools: []bridge.Capability{tool(d.Name + "_tool")}}
		m.started = append(m.started, d)
	}
	return nil
}

func (m *fakeManager) Remove(name string) {
	delete(m.descriptors, name)
	delete(m.sessions, name)
	m.removed = append(m.removed, name)
}

type fakeRegistry struct {
	published *bridge.RouteMap
}

func (r *fakeRegistry) Publish(rm *bridge.RouteMap) uint64 {
	r.published = rm
	return 1
}

func newManagerWith(names ...string) *fakeManager {
	m := &fakeManager{
		descriptors: map[string]bridge.BackendDescriptor{},
		sessions:    map[string]session.Session{},
	}
	for _, name := range names {
		d := bridge.BackendDescriptor{Name: name}
		m.descriptors[name] = d
		m.sessions[name] = &fakeSession{tools: []bridge.Capability{tool(name + "_tool")}}
	}
	return m
}

func TestReload_AddsNewBackend(t *testing.T) {
	t.Parallel()

	manager := newManagerWith("alpha")
	registry := &fakeRegistry{}
	initial := []bridge.BackendDescriptor{{Name: "alpha"}}
	coord := New(manager, registry, bridge.ConflictFirstWins, "_", nil, initial)

	report, err := coord.Reload(context.Background(), []bridge.BackendDescriptor{
		{Name: "alpha"},
		{Name: "beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, report.Added)
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Changed)
	require.NotNil(t, registry.published)
}

func TestReload_RemovesDroppedBackend(t *testing.T) {
	t.Parallel()

	manager := newManagerWith("alpha", "beta")
	registry := &fakeRegistry{}
	initial := []bridge.BackendDescriptor{{Name: "alpha"}, {Name: "beta"}}
	coord := New(manager, registry, bridge.ConflictFirstWins, "_", nil, initial)

	report, err := coord.Reload(context.Background(), []bridge.BackendDescriptor{{Name: "alpha"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, report.Removed)
	assert.Contains(t, manager.removed, "beta")
	_, stillThere := manager.Descriptor("beta")
	assert.False(t, stillThere)
}

func TestReload_RestartsChangedBackend(t *testing.T) {
	t.Parallel()

	manager := newManagerWith("alpha")
	registry := &fakeRegistry{}
	initial := []bridge.BackendDescriptor{{Name: "alpha", Group: "one"}}
	coord := New(manager, registry, bridge.ConflictFirstWins, "_", nil, initial)

	report, err := coord.Reload(context.Background(), []bridge.BackendDescriptor{{Name: "alpha", Group: "two"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, report.Changed)
	assert.Contains(t, manager.removed, "alpha")
	d, ok := manager.Descriptor("alpha")
	require.True(t, ok)
	assert.Equal(t, "two", d.Group)
}

func TestReload_NoopWhenDescriptorsUnchanged(t *testing.T) {
	t.Parallel()

	manager := newManagerWith("alpha")
	registry := &fakeRegistry{}
	initial := []bridge.BackendDescriptor{{Name: "alpha"}}
	coord := New(manager, registry, bridge.ConflictFirstWins, "_", nil, initial)

	report, err := coord.Reload(context.Background(), []bridge.BackendDescriptor{{Name: "alpha"}})
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Changed)
	assert.Empty(t, manager.removed)
	assert.Empty(t, manager.started)
}

func TestReload_SerializesConcurrentCallers(t *testing.T) {
	t.Parallel()

	manager := newManagerWith("alpha")
	registry := &fakeRegistry{}
	initial := []bridge.BackendDescriptor{{Name: "alpha"}}
	coord := New(manager, registry, bridge.ConflictFirstWins, "_", nil, initial)

	done := make(chan struct{})
	go func() {
		_, _ = coord.Reload(context.Background(), []bridge.BackendDescriptor{{Name: "alpha"}, {Name: "beta"}})
		close(done)
	}()
	<-done

	_, err := coord.Reload(context.Background(), []bridge.BackendDescriptor{{Name: "alpha"}, {Name: "beta"}, {Name: "gamma"}})
	require.NoError(t, err)
}
