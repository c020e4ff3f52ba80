package management

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/audit"
	"github.com/mcpfabric/gateway/pkg/bridge/reload"
)

type fakeManager struct {
	snapshot     []bridge.BackendStatus
	statusByName map[string]bridge.BackendStatus
	reconnectErr error
	reconnected  string
}

func (m *fakeManager) Snapshot() []bridge.BackendStatus { return m.snapshot }
func (m *fakeManager) Status(name string) (bridge.BackendStatus, bool) {
	s, ok := m.statusByName[name]
	return s, ok
}
func (m *fakeManager) Reconnect(_ context.Context, name string) error {
	m.reconnected = name
	return m.reconnectErr
}

type fakeRegistry struct {
	rm      *bridge.RouteMap
	version uint64
}

func (r *fakeRegistry) Snapshot() *bridge.RouteMap { return r.rm }
func (r *fakeRegistry) Version() uint64             { return r.version }

type fakeConfigSource struct {
	descriptors []bridge.BackendDescriptor
	err         error
}

func (c *fakeConfigSource) Descriptors() ([]bridge.BackendDescriptor, error) {
	return c.descriptors, c.err
}

type fakeCoordinator struct {
	report *reload.Report
	err    error
}

func (c *fakeCoordinator) Reload(context.Context, []bridge.BackendDescriptor) (*reload.Report, error) {
	return c.report, c.err
}

func newTestDeps() (Deps, *fakeManager, *fakeCoordinator) {
	mgr := &fakeManager{
		snapshot:     []bridge.BackendStatus{{Name: "alpha", Phase: bridge.PhaseReady}},
		statusByName: map[string]bridge.BackendStatus{"alpha": {Name: "alpha", Phase: bridge.PhaseReady}},
	}
	reg := &fakeRegistry{rm: bridge.NewRouteMap([]bridge.Capability{
		{Kind: bridge.KindTool, ExposedName: "search", Backend: "alpha"},
	}), version: 3}
	coord := &fakeCoordinator{report: &reload.Report{Added: []string{"beta"}}}
	cfg := &fakeConfigSource{descriptors: []bridge.BackendDescriptor{{Name: "alpha"}, {Name: "beta"}}}
	return Deps{Manager: mgr, Registry: reg, Coordinator: coord, Config: cfg, StartedAt: time.Now().Add(-time.Minute)}, mgr, coord
}

func TestStatus_ReturnsManagerSnapshot(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	r := Router(deps)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body StatusSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Backends, 1)
	assert.Equal(t, "alpha", body.Backends[0].Name)
}

func TestCapabilities_ReturnsRouteMapContents(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	r := Router(deps)
	req := httptest.NewRequest(http.MethodGet, "/capabilities", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body CapabilitiesSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint64(3), body.Version)
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "search", body.Tools[0].ExposedName)
}

func TestEvents_EmptyWithoutTailBuffer(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	r := Router(deps)
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body EventsTail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Events)
}

func TestEvents_ReturnsBufferedEventsAfterSince(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	sink := &recordingSink{}
	deps.Tail = audit.NewTailBuffer(sink, 10)
	deps.Tail.Record(context.Background(), audit.NewEvent(audit.KindMCPOperation))

	r := Router(deps)
	req := httptest.NewRequest(http.MethodGet, "/events?since=0", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body EventsTail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Events, 1)
}

type recordingSink struct{}

func (recordingSink) Record(context.Context, *audit.Event) {}
func (recordingSink) Dropped() uint64                       { return 0 }
func (recordingSink) Close() error                          { return nil }

func TestReload_ReturnsCoordinatorReport(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	r := Router(deps)
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body ReloadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"beta"}, body.Added)
}

func TestReload_BadConfigReturns400(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	deps.Config = &fakeConfigSource{err: assertErr("invalid yaml")}
	r := Router(deps)
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestReconnect_SuccessReturnsNewPhase(t *testing.T) {
	t.Parallel()

	deps, mgr, _ := newTestDeps()
	r := Router(deps)
	req := httptest.NewRequest(http.MethodPost, "/backends/alpha/reconnect", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", mgr.reconnected)
	var body ReconnectResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, bridge.PhaseReady, body.Phase)
}

func TestReconnect_FailureReturnsBadGateway(t *testing.T) {
	t.Parallel()

	deps, _, _ := newTestDeps()
	deps.Manager = &fakeManager{reconnectErr: assertErr("backend unreachable"), statusByName: map[string]bridge.BackendStatus{}}
	r := Router(deps)
	req := httptest.NewRequest(http.MethodPost, "/backends/alpha/reconnect", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
