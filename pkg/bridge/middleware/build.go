package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpfabric/gateway/pkg/bridge/audit"
	"github.com/mcpfabric/gateway/pkg/bridge/auth"
	"github.com/mcpfabric/gateway/pkg/bridge/authz"
)

// Options names every optional layer the chain can include. A nil/zero
// field omits that layer from the constructed chain entirely, per spec.md
// §4.7: "disabled middlewares are omitted (not present as no-ops) so the
// active chain's cost matches the enabled feature set."
type Options struct {
	// AuthProvider is never omitted: the anonymous provider is itself the
	// "authentication disabled" configuration, so the layer is always
	// present and simply always succeeds in that case.
	AuthProvider auth.Provider

	// AuthzEngine, if non-nil, inserts the authorization layer. Leave nil
	// (rather than a disabled *Engine) to omit the layer outright.
	AuthzEngine *authz.Engine

	// Tracer/Requests/Duration, if Tracer is non-nil, insert the
	// telemetry layer. Leave Tracer nil when no telemetry backend is
	// installed.
	Tracer   trace.Tracer
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec

	// Recorder, if non-nil, inserts the audit layer.
	Recorder *audit.Recorder
}

// Build constructs the full onion chain around terminal, in spec.md
// §4.7's fixed layer order: recovery, authentication, authorization,
// telemetry, audit, then terminal.
func Build(terminal Handler, opts Options) Handler {
	layers := []Middleware{Recovery(), Authentication(opts.AuthProvider)}
	if opts.AuthzEngine != nil {
		layers = append(layers, Authorization(opts.AuthzEngine))
	}
	if opts.Tracer != nil {
		layers = append(layers, Telemetry(opts.Tracer, opts.Requests, opts.Duration))
	}
	if opts.Recorder != nil {
		layers = append(layers, Audit(opts.Recorder))
	}
	return Chain(terminal, layers...)
}
