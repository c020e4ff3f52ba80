// Package auth implements the incoming-identity half of the authentication
// middleware (spec.md §4.7 point 2): a closed set of provider variants
// (anonymous, local static token, JWT, OIDC) selected once at startup from
// validated configuration, each producing a bridge.Identity from a bearer
// credential.
//
// Grounded on _examples/stacklok-toolhive/pkg/auth's test suite
// (anonymous_test.go, local_test.go, jwt_test.go, identity_test.go): the
// teacher's auth package already separates identity extraction from
// provider selection the same way; this package keeps that shape but
// drops the teacher's dynamic registry-of-named-providers pattern (design
// note in spec.md §9: "construct the middleware chain once at startup from
// the validated configuration" — no runtime lookup by provider name).
package auth

import (
	"context"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

// Provider authenticates one bearer credential into an identity.
type Provider interface {
	Authenticate(ctx context.Context, token string) (bridge.Identity, error)
}

// AnonymousProvider accepts every request (including an empty token) as
// the anonymous identity — used when incoming_auth.type is "anonymous".
type AnonymousProvider struct{}

// Authenticate always succeeds with the zero-value (anonymous) identity.
func (AnonymousProvider) Authenticate(context.Context, string) (bridge.Identity, error) {
	return bridge.Identity{}, nil
}

// errUnauthenticated is the shared failure every non-anonymous provider
// returns on a missing or rejected credential.
func errUnauthenticated(message string) error {
	return bridgeerrors.New(bridgeerrors.KindUnauthenticated, message)
}
