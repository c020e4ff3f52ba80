package aggregator

import (
	"context"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// Backends is the narrow slice of the client manager Rebuild needs: the
// set of currently known backend names, each one's live session (ok=false
// if not currently routable), and the descriptor it was started from (for
// its filter/override/group configuration).
type Backends interface {
	Names() []string
	Session(name string) (session.Session, bool)
	Descriptor(name string) (bridge.BackendDescriptor, bool)
}

// capabilityKinds is every kind ListCapabilities is queried for, in a
// fixed order so catalog construction is deterministic independent of map
// iteration.
var capabilityKinds = []bridge.CapabilityKind{bridge.KindTool, bridge.KindResource, bridge.KindPrompt}

// Rebuild queries every currently routable backend for its raw capability
// catalog, applies each backend's filter/rename pass, resolves conflicts
// per the configured strategy, and returns the flat capability slice ready
// for bridge.NewRouteMap. A backend that is not currently routable (not
// Ready/Degraded) is silently skipped — spec.md §4.6: "A backend
// transitioning to Failed removes its entries from the map" — rather than
// failing the whole rebuild; one broken backend must never prevent the
// others from being routable.
//
// Grounded on _examples/stacklok-toolhive/pkg/vmcp/aggregator/
// default_aggregator_test.go's AggregateCapabilities/QueryAllCapabilities
// flow: query every backend, merge, resolve.
func Rebuild(ctx context.Context, backends Backends, strategy bridge.ConflictStrategy, separator string, priorityOrder []string) ([]bridge.Capability, []DroppedCapability, error) {
	var catalogs []BackendCatalog
	for _, name := range backends.Names() {
		sess, ok := backends.Session(name)
		if !ok {
			continue
		}
		descriptor, ok := backends.Descriptor(name)
		if !ok {
			continue
		}

		var raw []bridge.Capability
		for _, kind := range capabilityKinds {
			caps, err := sess.ListCapabilities(ctx, kind)
			if err != nil {
				logger.Warnw("listing capabilities failed during rebuild", "backend", name, "kind", kind, "error", err)
				continue
			}
			raw = append(raw, caps...)
		}

		filtered := FilterAndRename(raw, descriptor.Filters, descriptor.ToolOverrides)
		catalogs = append(catalogs, BackendCatalog{Backend: name, Capabilities: filtered})
	}

	return Resolve(catalogs, strategy, separator, priorityOrder)
}
