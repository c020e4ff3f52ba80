// Package aggregator implements the pure filter/rename pass and the
// conflict-resolution strategies that turn per-backend raw capability
// catalogs into the flat, conflict-free slice the registry publishes.
//
// Grounded on _examples/stacklok-toolhive/pkg/vmcp/aggregator's test suite
// (conflict_resolver_test.go, default_aggregator_test.go): the teacher
// ships this subsystem almost entirely as tests describing intended
// behavior, which this package implements directly against spec.md §4.3
// and §4.4.
package aggregator

import (
	"sort"

	"github.com/gobwas/glob"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// FilterAndRename applies a backend's filter rules and tool-override map to
// its raw per-kind capability list, in the two-step order spec.md §4.3
// mandates: filter first (allow then deny, deny always wins), then rename.
// The function is deterministic and order-independent with respect to the
// allow/deny glob ordering in configuration.
func FilterAndRename(raw []bridge.Capability, rules map[bridge.CapabilityKind]bridge.FilterRules, overrides map[string]bridge.ToolOverride) []bridge.Capability {
	out := make([]bridge.Capability, 0, len(raw))
	for _, cap := range raw {
		if !passesFilter(cap.ExposedName, rules[cap.Kind]) {
			continue
		}
		out = append(out, applyOverride(cap, overrides))
	}
	return out
}

func passesFilter(name string, rules bridge.FilterRules) bool {
	if len(rules.Allow) > 0 && !matchesAny(name, rules.Allow) {
		return false
	}
	if len(rules.Deny) > 0 && matchesAny(name, rules.Deny) {
		return false
	}
	return true
}

func matchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			// An uncompilable glob never matches rather than panicking the
			// aggregation pass; configuration validation is responsible for
			// rejecting bad patterns before they reach here.
			continue
		}
		if g.Match(name) {
			return true
		}
	}
	return false
}

// applyOverride renames and/or redescribes cap if overrides names its
// current exposed name; the backend-side original name is preserved so
// routing can translate back on dispatch (spec.md §4.3 point 2). Only tool
// capabilities are overridden — spec.md restricts tool_overrides to tools.
func applyOverride(cap bridge.Capability, overrides map[string]bridge.ToolOverride) bridge.Capability {
	if cap.Kind != bridge.KindTool {
		return cap
	}
	override, ok := overrides[cap.ExposedName]
	if !ok {
		return cap
	}
	renamed := cap
	renamed.OriginalName = cap.ExposedName
	if override.Name != "" {
		renamed.ExposedName = override.Name
	}
	if override.Description != "" {
		renamed.Description = override.Description
	}
	return renamed
}

// SortedBackendNames returns names in stable ascending order, used only
// where a deterministic-but-arbitrary fallback order is needed; the
// aggregator's own insertion-order tie-break comes from the caller's
// descriptor slice order, not from this helper.
func SortedBackendNames(m map[string][]bridge.Capability) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
