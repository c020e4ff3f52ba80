package middleware

import (
	"context"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/auth"
	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
)

// Authentication is spec.md §4.7 point 2: extracts the bearer credential
// the transport stashed in context and resolves it to an identity through
// the configured provider, attaching the identity to context for
// downstream layers on success. A request carrying no token is still
// passed to provider.Authenticate with an empty string, so an anonymous
// provider's "always succeed" behavior is unaffected.
func Authentication(provider auth.Provider) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req router.Request) (session.Result, error) {
			token, _ := bridge.BearerTokenFromContext(ctx)
			identity, err := provider.Authenticate(ctx, token)
			if err != nil {
				return session.Result{}, err
			}
			return next(bridge.WithIdentity(ctx, identity), req)
		}
	}
}
