package management

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/audit"
	"github.com/mcpfabric/gateway/pkg/bridge/reload"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// Manager is the subset of the client manager the API reads and drives.
type Manager interface {
	Snapshot() []bridge.BackendStatus
	Status(name string) (bridge.BackendStatus, bool)
	Reconnect(ctx context.Context, name string) error
}

// Registry is the subset of the route-map publisher the API reads.
type Registry interface {
	Snapshot() *bridge.RouteMap
	Version() uint64
}

// ConfigSource loads the descriptor set a reload applies. Satisfied by a
// *config.Config already in hand (via a closure) or a fresh
// *config.YAMLLoader re-read from disk.
type ConfigSource interface {
	Descriptors() ([]bridge.BackendDescriptor, error)
}

// Coordinator is the subset of the reload coordinator the API drives.
type Coordinator interface {
	Reload(ctx context.Context, descriptors []bridge.BackendDescriptor) (*reload.Report, error)
}

// Deps bundles everything the management routes read or drive. Every
// field is required except Tail, which is nil when audit is disabled —
// the events route then always reports an empty tail.
type Deps struct {
	Manager     Manager
	Registry    Registry
	Coordinator Coordinator
	Config      ConfigSource
	Tail        *audit.TailBuffer
	StartedAt   time.Time
}

// Router mounts every management endpoint under one chi.Router, the way
// the teacher's v1 package mounts one router per resource and lets the
// caller assemble the final prefix mapping.
func Router(deps Deps) http.Handler {
	h := &handlers{deps: deps}
	r := chi.NewRouter()
	r.Get("/status", h.status)
	r.Get("/capabilities", h.capabilities)
	r.Get("/events", h.events)
	r.Post("/reload", h.reload)
	r.Post("/backends/{name}/reconnect", h.reconnect)
	return r
}

type handlers struct {
	deps Deps
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorw("failed to encode management API response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

//	 status
//		@Summary	Aggregate startup state and per-backend status
//		@Produce	json
//		@Success	200	{object}	StatusSnapshot
//		@Router		/status [get]
func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusSnapshot{
		StartedAt: h.deps.StartedAt,
		UptimeMS:  time.Since(h.deps.StartedAt).Seconds() * 1000,
		Backends:  h.deps.Manager.Snapshot(),
	})
}

//	 capabilities
//		@Summary	Per-kind capability list and current route-map version
//		@Produce	json
//		@Success	200	{object}	CapabilitiesSnapshot
//		@Router		/capabilities [get]
func (h *handlers) capabilities(w http.ResponseWriter, _ *http.Request) {
	rm := h.deps.Registry.Snapshot()
	writeJSON(w, http.StatusOK, CapabilitiesSnapshot{
		Version:   h.deps.Registry.Version(),
		Tools:     rm.List(bridge.KindTool),
		Resources: rm.List(bridge.KindResource),
		Prompts:   rm.List(bridge.KindPrompt),
	})
}

//	 events
//		@Summary	Recent audit events, filtered by time and count
//		@Produce	json
//		@Param		since	query	int	false	"unix seconds; only events strictly after this are returned"
//		@Param		max		query	int	false	"maximum events returned (the most recent ones), oldest first"
//		@Success	200	{object}	EventsTail
//		@Router		/events [get]
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	since := parseInt64(r.URL.Query().Get("since"), 0)
	max := int(parseInt64(r.URL.Query().Get("max"), 0))

	var events []*audit.Event
	if h.deps.Tail != nil {
		events = h.deps.Tail.Tail(since, max)
	}
	writeJSON(w, http.StatusOK, EventsTail{Events: events})
}

//	 reload
//		@Summary	Re-read configuration and rebuild the route map
//		@Produce	json
//		@Success	200	{object}	ReloadResult
//		@Router		/reload [post]
func (h *handlers) reload(w http.ResponseWriter, r *http.Request) {
	descriptors, err := h.deps.Config.Descriptors()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.deps.Coordinator.Reload(r.Context(), descriptors)
	if report == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := ReloadResult{Added: report.Added, Removed: report.Removed, Changed: report.Changed, Dropped: report.Dropped, Errors: report.Errors}
	status := http.StatusOK
	if err != nil {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

//	 reconnect
//		@Summary	Explicitly reconnect a single backend
//		@Produce	json
//		@Param		name	path	string	true	"backend name"
//		@Success	200	{object}	ReconnectResult
//		@Router		/backends/{name}/reconnect [post]
func (h *handlers) reconnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := h.deps.Manager.Reconnect(r.Context(), name)

	result := ReconnectResult{Name: name, Success: err == nil}
	if status, ok := h.deps.Manager.Status(name); ok {
		result.Phase = status.Phase
	}
	httpStatus := http.StatusOK
	if err != nil {
		result.Error = err.Error()
		httpStatus = http.StatusBadGateway
	}
	writeJSON(w, httpStatus, result)
}

func parseInt64(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
