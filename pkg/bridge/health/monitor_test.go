package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

type fakePinger struct{ fail bool }

func (f *fakePinger) Ping(context.Context) error {
	if f.fail {
		return errors.New("ping failed")
	}
	return nil
}

type fakeBackends struct {
	mu       sync.Mutex
	statuses map[string]bridge.BackendStatus
	pingers  map[string]*fakePinger
	failed   []string
	degraded []string
	ready    []string
}

func newFakeBackends() *fakeBackends {
	return &fakeBackends{statuses: map[string]bridge.BackendStatus{}, pingers: map[string]*fakePinger{}}
}

func (f *fakeBackends) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.statuses))
	for n := range f.statuses {
		out = append(out, n)
	}
	return out
}
func (f *fakeBackends) Session(name string) (Pinger, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pingers[name]
	return p, ok
}
func (f *fakeBackends) Status(name string) (bridge.BackendStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[name]
	return s, ok
}
func (f *fakeBackends) SetDegraded(name, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, name)
}
func (f *fakeBackends) SetReady(name string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = append(f.ready, name)
}
func (f *fakeBackends) Fail(name, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, name)
}

func TestMonitor_FailsAfterThreshold(t *testing.T) {
	t.Parallel()

	backends := newFakeBackends()
	backends.statuses["gh"] = bridge.BackendStatus{Name: "gh", Phase: bridge.PhaseReady}
	backends.pingers["gh"] = &fakePinger{fail: true}

	m := New(backends, Config{FailedThreshold: 3, DegradedThreshold: 1})
	ctx := context.Background()
	m.probeOne(ctx, "gh")
	m.probeOne(ctx, "gh")
	assert.Empty(t, backends.failed)
	m.probeOne(ctx, "gh")
	require.Len(t, backends.failed, 1)
	assert.Equal(t, "gh", backends.failed[0])
}

func TestMonitor_SuccessResetsCounters(t *testing.T) {
	t.Parallel()

	backends := newFakeBackends()
	backends.statuses["gh"] = bridge.BackendStatus{Name: "gh", Phase: bridge.PhaseReady}
	backends.pingers["gh"] = &fakePinger{fail: false}

	m := New(backends, Config{})
	m.probeOne(context.Background(), "gh")
	require.Len(t, backends.ready, 1)
	assert.Empty(t, backends.failed)
	assert.Empty(t, backends.degraded)
}

func TestMonitor_DegradesAtThreshold(t *testing.T) {
	t.Parallel()

	backends := newFakeBackends()
	backends.statuses["gh"] = bridge.BackendStatus{Name: "gh", Phase: bridge.PhaseReady}
	backends.pingers["gh"] = &fakePinger{fail: true}

	m := New(backends, Config{FailedThreshold: 5, DegradedThreshold: 1})
	m.probeOne(context.Background(), "gh")
	require.Len(t, backends.degraded, 1)
	assert.Empty(t, backends.failed)
}
