package middleware

import (
	"context"
	"fmt"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/authz"
	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

// Authorization is spec.md §4.7 point 3: evaluates the resolved
// identity's roles against the engine's ordered policy list for the
// request's resource (`kind:exposed-name`), failing with `forbidden` on
// deny.
func Authorization(engine *authz.Engine) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req router.Request) (session.Result, error) {
			identity := bridge.IdentityFromContext(ctx)
			resource := authz.Resource(req.Method, req.ExposedName)
			if !engine.Authorize(identity.Groups, resource) {
				return session.Result{}, bridgeerrors.New(bridgeerrors.KindForbidden, fmt.Sprintf("denied for resource %q", resource))
			}
			return next(ctx, req)
		}
	}
}
