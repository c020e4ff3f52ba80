package bridge

import (
	"sort"
	"sync/atomic"
)

// RouteMap is the immutable, per-kind lookup table the gateway publishes
// after every aggregation rebuild. Request handling reads it through
// Registry.Snapshot and RouteMap.Resolve and never sees a partially built
// map: a new RouteMap is
// always constructed whole and swapped in atomically.
type RouteMap struct {
	tools     map[string]RouteEntry
	resources map[string]RouteEntry
	prompts   map[string]RouteEntry

	// capabilities holds the full exposed Capability records in the same
	// key space as the three maps above, for list_tools/list_resources/
	// list_prompts responses that need more than the routing target.
	capabilities map[CapabilityKind]map[string]Capability
}

// NewRouteMap builds a RouteMap from a flat slice of already
// filtered-renamed-and-conflict-resolved capabilities. Callers (the
// aggregator) are responsible for conflict resolution before calling this;
// NewRouteMap itself does not detect or resolve duplicate names — the last
// entry for a given (kind, name) silently wins, matching the aggregator's
// own first-wins bookkeeping of "the entry that survived resolution".
func NewRouteMap(caps []Capability) *RouteMap {
	rm := &RouteMap{
		tools:     make(map[string]RouteEntry),
		resources: make(map[string]RouteEntry),
		prompts:   make(map[string]RouteEntry),
		capabilities: map[CapabilityKind]map[string]Capability{
			KindTool:     make(map[string]Capability),
			KindResource: make(map[string]Capability),
			KindPrompt:   make(map[string]Capability),
		},
	}
	for _, c := range caps {
		entry := RouteEntry{Backend: c.Backend, OriginalName: c.BackendName(), Kind: c.Kind}
		switch c.Kind {
		case KindTool:
			rm.tools[c.ExposedName] = entry
		case KindResource:
			rm.resources[c.ExposedName] = entry
		case KindPrompt:
			rm.prompts[c.ExposedName] = entry
		}
		rm.capabilities[c.Kind][c.ExposedName] = c
	}
	return rm
}

// Resolve looks up the route for one exposed capability name of the given
// kind.
func (r *RouteMap) Resolve(kind CapabilityKind, exposedName string) (RouteEntry, bool) {
	if r == nil {
		return RouteEntry{}, false
	}
	var m map[string]RouteEntry
	switch kind {
	case KindTool:
		m = r.tools
	case KindResource:
		m = r.resources
	case KindPrompt:
		m = r.prompts
	}
	e, ok := m[exposedName]
	return e, ok
}

// List returns a stable-ordered, independent copy of every exposed
// capability of the given kind. Independent: callers may freely mutate the
// returned slice without affecting the published map.
func (r *RouteMap) List(kind CapabilityKind) []Capability {
	if r == nil {
		return nil
	}
	byName := r.capabilities[kind]
	out := make([]Capability, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExposedName < out[j].ExposedName })
	return out
}

// Count returns the number of exposed capabilities of the given kind.
func (r *RouteMap) Count(kind CapabilityKind) int {
	if r == nil {
		return 0
	}
	return len(r.capabilities[kind])
}

// Registry publishes the current RouteMap via a lock-free atomic pointer.
// Publish is the only writer; Snapshot/Version are the hot read path and
// never block on a Publish in progress.
type Registry struct {
	current atomic.Pointer[RouteMap]
	version atomic.Uint64
}

// NewRegistry returns a Registry with an empty, immediately usable route
// map — a gateway that has not yet completed its first aggregation still
// answers every lookup as "not found" rather than with a nil-pointer panic.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.current.Store(NewRouteMap(nil))
	return reg
}

// Publish atomically swaps in a newly built RouteMap and bumps the version
// counter. The previous map stays valid for any reader still holding a
// reference to it (Snapshot), matching the frozen-per-session semantics the
// upstream session tracker relies on.
func (r *Registry) Publish(rm *RouteMap) uint64 {
	r.current.Store(rm)
	return r.version.Add(1)
}

// Snapshot returns the currently published RouteMap. The returned pointer
// is safe to retain indefinitely: it is never mutated after Publish stores
// it, only replaced by a later Publish.
func (r *Registry) Snapshot() *RouteMap {
	return r.current.Load()
}

// Version returns the number of times Publish has been called.
func (r *Registry) Version() uint64 {
	return r.version.Load()
}
