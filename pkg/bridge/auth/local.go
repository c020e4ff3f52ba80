package auth

import (
	"context"
	"crypto/subtle"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// LocalProvider validates a single static bearer token with a
// constant-time comparison, used when incoming_auth.type is "local".
// Grounded on the teacher's pkg/auth/local_test.go, which asserts the same
// constant-time-compare behavior for its static token provider.
type LocalProvider struct {
	token string
}

// NewLocalProvider returns a LocalProvider checking against token.
func NewLocalProvider(token string) *LocalProvider {
	return &LocalProvider{token: token}
}

// Authenticate rejects an empty or mismatched token with Unauthenticated;
// on success the identity carries a fixed "local" subject since the static
// token names no individual principal.
func (p *LocalProvider) Authenticate(_ context.Context, token string) (bridge.Identity, error) {
	if token == "" {
		return bridge.Identity{}, errUnauthenticated("missing bearer token")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(p.token)) != 1 {
		return bridge.Identity{}, errUnauthenticated("invalid token")
	}
	return bridge.Identity{Subject: "local", Token: token}, nil
}
