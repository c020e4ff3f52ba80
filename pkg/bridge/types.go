// Package bridge holds the aggregation gateway's core domain types and the
// capability registry that publishes the route map to every request path.
//
// Everything here is a plain value or an immutable-by-convention snapshot:
// the hot request path (registry reads) never blocks and never allocates
// beyond the copies it must return to keep callers from mutating shared
// state (see RouteMap.List).
package bridge

import "time"

// TransportKind identifies which of the three backend transports a
// descriptor connects over.
type TransportKind string

const (
	TransportStdio           TransportKind = "stdio"
	TransportSSE             TransportKind = "sse"
	TransportStreamableHTTP  TransportKind = "streamable-http"
)

// BackendPhase is a backend session's position in its lifecycle.
type BackendPhase string

const (
	PhasePending      BackendPhase = "Pending"
	PhaseInitializing BackendPhase = "Initializing"
	PhaseReady        BackendPhase = "Ready"
	PhaseDegraded     BackendPhase = "Degraded"
	PhaseFailed       BackendPhase = "Failed"
	PhaseShuttingDown BackendPhase = "ShuttingDown"
)

// Routable reports whether a backend in this phase may still receive
// dispatched calls and appear in the route map.
func (p BackendPhase) Routable() bool {
	return p == PhaseReady || p == PhaseDegraded
}

// CapabilityKind is one of the three MCP capability types the gateway
// aggregates.
type CapabilityKind string

const (
	KindTool     CapabilityKind = "tool"
	KindResource CapabilityKind = "resource"
	KindPrompt   CapabilityKind = "prompt"
)

// ConflictStrategy names a route-map conflict resolution strategy.
type ConflictStrategy string

const (
	ConflictFirstWins ConflictStrategy = "first-wins"
	ConflictPrefix    ConflictStrategy = "prefix"
	ConflictPriority  ConflictStrategy = "priority"
	ConflictError     ConflictStrategy = "error"
)

// OutgoingAuthKind selects how a backend session authenticates outbound to
// its backend.
type OutgoingAuthKind string

const (
	OutgoingAuthNone             OutgoingAuthKind = ""
	OutgoingAuthStatic           OutgoingAuthKind = "static"
	OutgoingAuthClientCredentials OutgoingAuthKind = "client-credentials"
)

// FilterRules are the per-capability-kind allow/deny glob lists from a
// backend descriptor.
type FilterRules struct {
	Allow []string
	Deny  []string
}

// ToolOverride renames and/or redescribes a single tool exposed by a
// backend, keyed by the tool's original name.
type ToolOverride struct {
	Name        string
	Description string
}

// Timeouts are the per-backend overrides for the three timers the backend
// session contract depends on. A zero value means "use the deployment
// default" — callers resolve defaults via WithDefaults.
type Timeouts struct {
	Init       time.Duration
	CapFetch   time.Duration
	StartDelay time.Duration
}

// Default timeouts, applied when a descriptor leaves a field unset.
const (
	DefaultInitTimeout       = 15 * time.Second
	DefaultCapFetchTimeout   = 10 * time.Second
	DefaultStartDelayTimeout = 15 * time.Second
)

// WithDefaults returns a copy of t with zero fields replaced by the
// package defaults.
func (t Timeouts) WithDefaults() Timeouts {
	if t.Init == 0 {
		t.Init = DefaultInitTimeout
	}
	if t.CapFetch == 0 {
		t.CapFetch = DefaultCapFetchTimeout
	}
	if t.StartDelay == 0 {
		t.StartDelay = DefaultStartDelayTimeout
	}
	return t
}

// StaticAuthConfig is the "static headers" outgoing auth strategy: a fixed
// key-value set, values already resolved from secrets by the configuration
// layer.
type StaticAuthConfig struct {
	Headers map[string]string
}

// ClientCredentialsConfig is the "client-credentials token fetch" outgoing
// auth strategy.
type ClientCredentialsConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// RefreshBuffer is how long before the declared token expiry a refresh
	// is triggered.
	RefreshBuffer time.Duration
}

// OutgoingAuth selects and configures one backend-outgoing auth strategy.
type OutgoingAuth struct {
	Kind              OutgoingAuthKind
	Static            *StaticAuthConfig
	ClientCredentials *ClientCredentialsConfig
}

// StdioConnect is the connect parameters for the stdio transport.
type StdioConnect struct {
	Command string
	Args    []string
	Env     map[string]string
}

// NetworkConnect is the connect parameters shared by the SSE and
// streamable-http transports.
type NetworkConnect struct {
	URL     string
	Headers map[string]string
}

// BackendDescriptor is the declarative, immutable record of one backend as
// read from configuration. Identity is Name; replaced wholesale on reload,
// never mutated in place.
type BackendDescriptor struct {
	Name          string
	Transport     TransportKind
	Stdio         StdioConnect
	Network       NetworkConnect
	Auth          OutgoingAuth
	Group         string
	Filters       map[CapabilityKind]FilterRules
	ToolOverrides map[string]ToolOverride
	Timeouts      Timeouts
}

// ContentHash is a cheap structural fingerprint used by the reload
// coordinator to classify a descriptor as changed vs. untouched; computed
// by the reload package, not stored here, to keep this type comparison-free.

// Condition is one appended status-record entry explaining a phase or
// health event.
type Condition struct {
	Type      string
	Status    bool
	Reason    string
	Message   string
	Timestamp time.Time
}

// BackendStatus is the mutable, observable snapshot of one backend session.
type BackendStatus struct {
	Name             string
	Phase            BackendPhase
	Conditions       []Condition
	LastLatency      time.Duration
	ToolCount        int
	ResourceCount    int
	PromptCount      int
	LastTransitionAt time.Time
}

// SetCondition appends a new condition, or — per the append-only-within-
// bounds invariant — updates the most recent condition of the same Type in
// place instead of growing the slice unboundedly.
func (s *BackendStatus) SetCondition(c Condition) {
	for i := len(s.Conditions) - 1; i >= 0; i-- {
		if s.Conditions[i].Type == c.Type {
			s.Conditions[i] = c
			return
		}
	}
	s.Conditions = append(s.Conditions, c)
}

// Capability is one exposed tool/resource/prompt after filtering, renaming,
// and conflict resolution.
type Capability struct {
	Kind         CapabilityKind
	ExposedName  string
	OriginalName string
	Backend      string

	Description string
	// InputSchema is populated for tools.
	InputSchema map[string]any
	// URI and MIMEType are populated for resources.
	URI      string
	MIMEType string
	// Arguments is populated for prompts.
	Arguments []PromptArgument
}

// BackendName returns the capability's original backend-side name,
// falling back to the exposed name when no rename was applied — the
// common case where a capability passed through unchanged.
func (c Capability) BackendName() string {
	if c.OriginalName != "" {
		return c.OriginalName
	}
	return c.ExposedName
}

// PromptArgument describes one named argument a prompt accepts.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// RouteEntry is one resolved route-map target.
type RouteEntry struct {
	Backend      string
	OriginalName string
	Kind         CapabilityKind
}

// Content is one piece of a tool call or prompt result, mirroring MCP's
// content block shape.
type Content struct {
	Type string
	Text string
	Data []byte
	MIME string
}

// ToolCallResult is the outcome of a backend tool invocation.
type ToolCallResult struct {
	Content []Content
	IsError bool
}

// ResourceReadResult is the outcome of a backend resource read.
type ResourceReadResult struct {
	Contents []byte
	MIMEType string
}

// PromptGetResult is the outcome of a backend prompt fetch.
type PromptGetResult struct {
	Description string
	Messages    []Content
}
