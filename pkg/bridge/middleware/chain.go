// Package middleware composes the onion-style request chain spec.md §4.7
// describes: recovery, authentication, authorization, telemetry, audit,
// and the routing terminal, constructed once at startup from the
// validated configuration.
//
// Grounded on _examples/stacklok-toolhive/pkg/telemetry/middleware_test.go
// for the tracer/meter-provider injection shape, and the teacher's general
// HTTP middleware chaining convention (func(Handler) Handler) used across
// pkg/authz/middleware.go and pkg/audit/middleware.go — adapted here from
// net/http's Handler to the bridge's own Handler signature, since the
// chain operates on decoded MCP requests rather than raw HTTP.
package middleware

import (
	"context"

	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
)

// Handler services one decorated inbound request.
type Handler func(ctx context.Context, req router.Request) (session.Result, error)

// Middleware wraps a Handler with one chain layer.
type Middleware func(next Handler) Handler

// Chain links layers outermost-first: Chain(h, a, b, c) runs a, then b,
// then c, then h.
func Chain(terminal Handler, layers ...Middleware) Handler {
	h := terminal
	for i := len(layers) - 1; i >= 0; i-- {
		h = layers[i](h)
	}
	return h
}
