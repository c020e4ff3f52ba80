package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

func TestTracker_TouchCreatesOnFirstCall(t *testing.T) {
	t.Parallel()

	registry := bridge.NewRegistry()
	registry.Publish(bridge.NewRouteMap([]bridge.Capability{
		{Kind: bridge.KindTool, ExposedName: "search", Backend: "alpha"},
	}))

	tracker := New(registry, time.Minute)
	sess := tracker.Touch("sess-1")
	require.NotNil(t, sess)
	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, 1, registry.Snapshot().Count(bridge.KindTool))
	assert.Same(t, registry.Snapshot(), sess.Snapshot)
}

func TestTracker_SnapshotFrozenAcrossReload(t *testing.T) {
	t.Parallel()

	registry := bridge.NewRegistry()
	registry.Publish(bridge.NewRouteMap([]bridge.Capability{
		{Kind: bridge.KindTool, ExposedName: "search", Backend: "alpha"},
	}))

	tracker := New(registry, time.Minute)
	sess := tracker.Touch("sess-1")
	original := sess.Snapshot

	registry.Publish(bridge.NewRouteMap([]bridge.Capability{
		{Kind: bridge.KindTool, ExposedName: "search", Backend: "alpha"},
		{Kind: bridge.KindTool, ExposedName: "fetch", Backend: "beta"},
	}))

	again, ok := tracker.Get("sess-1")
	require.True(t, ok)
	assert.Same(t, original, again.Snapshot)
	assert.Equal(t, 1, again.Snapshot.Count(bridge.KindTool))
	assert.Equal(t, 2, registry.Snapshot().Count(bridge.KindTool))
}

func TestTracker_TouchRefreshesIdleClock(t *testing.T) {
	t.Parallel()

	registry := bridge.NewRegistry()
	tracker := New(registry, time.Minute)
	first := tracker.Touch("sess-1")
	firstSeen := first.lastSeenAt

	time.Sleep(time.Millisecond)
	tracker.Touch("sess-1")
	again, _ := tracker.Get("sess-1")
	assert.True(t, again.lastSeenAt.After(firstSeen))
	assert.Equal(t, 1, tracker.Count())
}

func TestTracker_EvictRemovesImmediately(t *testing.T) {
	t.Parallel()

	registry := bridge.NewRegistry()
	tracker := New(registry, time.Minute)
	tracker.Touch("sess-1")
	require.Equal(t, 1, tracker.Count())

	tracker.Evict("sess-1")
	_, ok := tracker.Get("sess-1")
	assert.False(t, ok)
	assert.Equal(t, 0, tracker.Count())
}

func TestTracker_SweepEvictsExpiredSessions(t *testing.T) {
	t.Parallel()

	registry := bridge.NewRegistry()
	tracker := New(registry, 10*time.Millisecond)
	tracker.Touch("stale")
	time.Sleep(20 * time.Millisecond)
	tracker.Touch("fresh")

	tracker.sweep()

	_, staleOK := tracker.Get("stale")
	_, freshOK := tracker.Get("fresh")
	assert.False(t, staleOK)
	assert.True(t, freshOK)
}

func TestTracker_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	registry := bridge.NewRegistry()
	tracker := New(registry, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tracker.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
