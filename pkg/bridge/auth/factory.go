package auth

import (
	"context"
	"fmt"

	"github.com/mcpfabric/gateway/pkg/bridge/config"
)

// NewProvider selects and constructs the one Provider variant named by
// cfg.Type, per spec.md §9's "closed set of auth-provider variants
// selected by configuration tag" design note — there is no runtime lookup
// of a provider by string against a registry beyond this single switch,
// evaluated once at startup.
func NewProvider(ctx context.Context, cfg config.IncomingAuthConfig) (Provider, error) {
	switch cfg.Type {
	case "", "anonymous":
		return AnonymousProvider{}, nil
	case "local":
		return NewLocalProvider(cfg.Local.Token), nil
	case "jwt":
		return NewJWTProvider(ctx, cfg.JWT.JWKSURI, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Algorithms)
	case "oidc":
		return NewOIDCProvider(ctx, cfg.OIDC.Issuer, cfg.OIDC.Audience)
	default:
		return nil, fmt.Errorf("auth: unknown incoming_auth.type %q", cfg.Type)
	}
}
