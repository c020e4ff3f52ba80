package aggregator

import (
	"fmt"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// BackendCatalog is one backend's filtered-and-renamed capability list,
// tagged with the backend name that produced it. Callers pass these in
// descriptor order — the tie-break spec.md §4.4 names for every strategy.
type BackendCatalog struct {
	Backend      string
	Capabilities []bridge.Capability
}

// DroppedCapability is emitted as a `capability_dropped` audit event
// (spec.md §4.4) whenever first-wins or priority must discard a losing
// entry.
type DroppedCapability struct {
	Kind        bridge.CapabilityKind
	ExposedName string
	Backend     string
	WinningBackend string
}

// ConflictError is the fatal build error the `error` strategy raises on any
// collision, aborting publication of a partial map (spec.md §4.4).
type ConflictError struct {
	Kind        bridge.CapabilityKind
	ExposedName string
	Backends    []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict resolution: capability %q (%s) exposed by multiple backends %v with strategy \"error\"", e.ExposedName, e.Kind, e.Backends)
}

// Resolve merges catalogs into a single flat, conflict-free capability
// slice per the named strategy, returning any capabilities dropped along
// the way for the caller to audit.
func Resolve(catalogs []BackendCatalog, strategy bridge.ConflictStrategy, separator string, priorityOrder []string) ([]bridge.Capability, []DroppedCapability, error) {
	switch strategy {
	case bridge.ConflictPrefix:
		return resolvePrefix(catalogs, separator), nil, nil
	case bridge.ConflictFirstWins:
		return resolveFirstWins(catalogs)
	case bridge.ConflictPriority:
		return resolvePriority(catalogs, priorityOrder)
	case bridge.ConflictError:
		return resolveError(catalogs)
	default:
		return nil, nil, fmt.Errorf("aggregator: unknown conflict resolution strategy %q", strategy)
	}
}

// resolvePrefix renames every entry to backend+separator+exposed-name; by
// construction there are never conflicts (spec.md §4.4).
func resolvePrefix(catalogs []BackendCatalog, separator string) []bridge.Capability {
	out := make([]bridge.Capability, 0)
	for _, cat := range catalogs {
		for _, cap := range cat.Capabilities {
			renamed := cap
			renamed.Backend = cat.Backend
			if renamed.OriginalName == "" {
				renamed.OriginalName = cap.ExposedName
			}
			renamed.ExposedName = cat.Backend + separator + cap.ExposedName
			out = append(out, renamed)
		}
	}
	return out
}

// resolveFirstWins scans backends in catalogs' order (insertion order); the
// first occurrence of an exposed name per kind wins, later ones are
// dropped and reported.
func resolveFirstWins(catalogs []BackendCatalog) ([]bridge.Capability, []DroppedCapability, error) {
	type key struct {
		kind bridge.CapabilityKind
		name string
	}
	claimed := map[key]string{}
	var out []bridge.Capability
	var dropped []DroppedCapability

	for _, cat := range catalogs {
		for _, cap := range cat.Capabilities {
			k := key{cap.Kind, cap.ExposedName}
			if winner, ok := claimed[k]; ok {
				dropped = append(dropped, DroppedCapability{
					Kind: cap.Kind, ExposedName: cap.ExposedName,
					Backend: cat.Backend, WinningBackend: winner,
				})
				continue
			}
			claimed[k] = cat.Backend
			entry := cap
			entry.Backend = cat.Backend
			out = append(out, entry)
		}
	}
	return out, dropped, nil
}

// resolvePriority picks the winner for each collision from priorityOrder;
// backends not named in priorityOrder are appended, in their catalogs'
// insertion order, after the listed backends.
func resolvePriority(catalogs []BackendCatalog, priorityOrder []string) ([]bridge.Capability, []DroppedCapability, error) {
	rank := make(map[string]int, len(priorityOrder))
	for i, name := range priorityOrder {
		rank[name] = i
	}
	nextRank := len(priorityOrder)

	ordered := make([]BackendCatalog, len(catalogs))
	copy(ordered, catalogs)
	catalogRank := make(map[string]int, len(catalogs))
	for _, cat := range catalogs {
		if r, ok := rank[cat.Backend]; ok {
			catalogRank[cat.Backend] = r
			continue
		}
		catalogRank[cat.Backend] = nextRank
		nextRank++
	}
	sortStableByRank(ordered, catalogRank)

	return resolveFirstWins(ordered)
}

func sortStableByRank(catalogs []BackendCatalog, rank map[string]int) {
	// Stable insertion sort: catalogs is always small (one entry per
	// backend), and stability preserves the insertion-order tie-break
	// spec.md requires among backends of equal (unlisted) rank.
	for i := 1; i < len(catalogs); i++ {
		for j := i; j > 0 && rank[catalogs[j-1].Backend] > rank[catalogs[j].Backend]; j-- {
			catalogs[j-1], catalogs[j] = catalogs[j], catalogs[j-1]
		}
	}
}

// resolveError aborts on the first collision found, scanning in insertion
// order for a deterministic error message.
func resolveError(catalogs []BackendCatalog) ([]bridge.Capability, []DroppedCapability, error) {
	type key struct {
		kind bridge.CapabilityKind
		name string
	}
	seen := map[key][]string{}
	order := make([]key, 0)
	var out []bridge.Capability

	for _, cat := range catalogs {
		for _, cap := range cat.Capabilities {
			k := key{cap.Kind, cap.ExposedName}
			if _, ok := seen[k]; !ok {
				order = append(order, k)
			}
			seen[k] = append(seen[k], cat.Backend)
			entry := cap
			entry.Backend = cat.Backend
			out = append(out, entry)
		}
	}
	for _, k := range order {
		if len(seen[k]) > 1 {
			return nil, nil, &ConflictError{Kind: k.kind, ExposedName: k.name, Backends: seen[k]}
		}
	}
	return out, nil, nil
}
