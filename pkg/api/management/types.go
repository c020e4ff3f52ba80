// Package management implements the management REST API (spec.md §6):
// the status/capabilities/events observation surface plus the reload and
// reconnect operations, mounted under a versioned prefix for the TUI and
// any external caller to poll.
//
// Grounded on _examples/stacklok-toolhive/pkg/api/v1 (healthcheck.go,
// version.go, servers.go): one chi.NewRouter() per resource, handlers
// reaching their dependencies through the small interfaces declared in
// routes.go (Manager, Registry, ConfigSource, Coordinator), and JSON
// written by hand via encoding/json rather than a framework response type.
package management

import (
	"time"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/aggregator"
	"github.com/mcpfabric/gateway/pkg/bridge/audit"
)

// StatusSnapshot is the status_snapshot() response.
type StatusSnapshot struct {
	StartedAt time.Time              `json:"started_at"`
	UptimeMS  float64                `json:"uptime_ms"`
	Backends  []bridge.BackendStatus `json:"backends"`
}

// CapabilitiesSnapshot is the capabilities_snapshot(filters) response.
type CapabilitiesSnapshot struct {
	Version   uint64              `json:"version"`
	Tools     []bridge.Capability `json:"tools"`
	Resources []bridge.Capability `json:"resources"`
	Prompts   []bridge.Capability `json:"prompts"`
}

// EventsTail is the events_tail(since, max) response.
type EventsTail struct {
	Events []*audit.Event `json:"events"`
}

// ReloadResult is the reload() response, mirroring reload.Report.
type ReloadResult struct {
	Added   []string                       `json:"added"`
	Removed []string                       `json:"removed"`
	Changed []string                       `json:"changed"`
	Dropped []aggregator.DroppedCapability `json:"dropped,omitempty"`
	Errors  []string                       `json:"errors,omitempty"`
}

// ReconnectResult is the reconnect(name) response.
type ReconnectResult struct {
	Name    string              `json:"name"`
	Success bool                `json:"success"`
	Phase   bridge.BackendPhase `json:"phase"`
	Error   string              `json:"error,omitempty"`
}

// errorResponse is the JSON body written for any handler failure.
type errorResponse struct {
	Error string `json:"error"`
}
