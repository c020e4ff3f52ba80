package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCaps() []Capability {
	return []Capability{
		{Kind: KindTool, ExposedName: "search", OriginalName: "search", Backend: "github"},
		{Kind: KindTool, ExposedName: "github_create_issue", OriginalName: "create_issue", Backend: "github"},
		{Kind: KindResource, ExposedName: "readme", OriginalName: "readme", Backend: "docs", URI: "docs://readme"},
		{Kind: KindPrompt, ExposedName: "summarize", OriginalName: "summarize", Backend: "docs"},
	}
}

func TestNewRouteMap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		caps []Capability
		want map[CapabilityKind]int
	}{
		{
			name: "mixed kinds",
			caps: sampleCaps(),
			want: map[CapabilityKind]int{KindTool: 2, KindResource: 1, KindPrompt: 1},
		},
		{
			name: "empty slice",
			caps: []Capability{},
			want: map[CapabilityKind]int{KindTool: 0, KindResource: 0, KindPrompt: 0},
		},
		{
			name: "nil slice",
			caps: nil,
			want: map[CapabilityKind]int{KindTool: 0, KindResource: 0, KindPrompt: 0},
		},
		{
			name: "duplicate exposed name - last wins",
			caps: []Capability{
				{Kind: KindTool, ExposedName: "dup", OriginalName: "first", Backend: "a"},
				{Kind: KindTool, ExposedName: "dup", OriginalName: "second", Backend: "b"},
			},
			want: map[CapabilityKind]int{KindTool: 1, KindResource: 0, KindPrompt: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rm := NewRouteMap(tt.caps)
			require.NotNil(t, rm)
			for kind, count := range tt.want {
				assert.Equal(t, count, rm.Count(kind), "kind=%s", kind)
			}
		})
	}
}

func TestRouteMap_Resolve(t *testing.T) {
	t.Parallel()

	rm := NewRouteMap(sampleCaps())

	entry, ok := rm.Resolve(KindTool, "github_create_issue")
	require.True(t, ok)
	assert.Equal(t, "github", entry.Backend)
	assert.Equal(t, "create_issue", entry.OriginalName)

	_, ok = rm.Resolve(KindTool, "nonexistent")
	assert.False(t, ok)

	_, ok = rm.Resolve(KindResource, "github_create_issue")
	assert.False(t, ok, "wrong kind must not resolve")
}

func TestRouteMap_ResolveOnNil(t *testing.T) {
	t.Parallel()

	var rm *RouteMap
	_, ok := rm.Resolve(KindTool, "anything")
	assert.False(t, ok)
	assert.Equal(t, 0, rm.Count(KindTool))
	assert.Nil(t, rm.List(KindTool))
}

func TestRouteMap_ListIsIndependentCopy(t *testing.T) {
	t.Parallel()

	rm := NewRouteMap(sampleCaps())

	list := rm.List(KindTool)
	require.Len(t, list, 2)
	list[0].ExposedName = "mutated"

	list2 := rm.List(KindTool)
	for _, c := range list2 {
		assert.NotEqual(t, "mutated", c.ExposedName)
	}
}

func TestRouteMap_ListIsSorted(t *testing.T) {
	t.Parallel()

	rm := NewRouteMap(sampleCaps())
	list := rm.List(KindTool)
	require.Len(t, list, 2)
	assert.Less(t, list[0].ExposedName, list[1].ExposedName)
}

func TestRegistry_PublishAndSnapshot(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	assert.Equal(t, uint64(0), reg.Version())
	assert.Equal(t, 0, reg.Snapshot().Count(KindTool))

	v1 := reg.Publish(NewRouteMap(sampleCaps()))
	assert.Equal(t, uint64(1), v1)
	assert.Equal(t, uint64(1), reg.Version())
	assert.Equal(t, 2, reg.Snapshot().Count(KindTool))

	v2 := reg.Publish(NewRouteMap(nil))
	assert.Equal(t, uint64(2), v2)
	assert.Equal(t, 0, reg.Snapshot().Count(KindTool))
}

func TestRegistry_SnapshotIsFrozenForHolders(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Publish(NewRouteMap(sampleCaps()))

	held := reg.Snapshot()
	reg.Publish(NewRouteMap(nil))

	// A snapshot taken before a later Publish must still resolve exactly
	// as it did at capture time — this is what lets an upstream session
	// serve a stable list_tools result across a concurrent reload.
	assert.Equal(t, 2, held.Count(KindTool))
	assert.Equal(t, 0, reg.Snapshot().Count(KindTool))
}

func TestRegistry_ConcurrentPublishAndRead(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			reg.Publish(NewRouteMap(sampleCaps()))
		}
	}()

	for i := 0; i < 100; i++ {
		_ = reg.Snapshot().Count(KindTool)
	}
	<-done
	assert.Equal(t, uint64(100), reg.Version())
}
