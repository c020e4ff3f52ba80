package middleware

import (
	"context"

	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// Recovery is the outermost layer (spec.md §4.7 point 1): it converts any
// panic escaping an inner layer into a structured internal error rather
// than letting it crash the request-handling task, and strips panic
// detail from the value returned to the caller while still logging the
// full detail for operator diagnosis.
func Recovery() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req router.Request) (result session.Result, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorw("recovered panic in request chain", "panic", r, "method", req.Method, "capability", req.ExposedName)
					err = bridgeerrors.New(bridgeerrors.KindInternal, "internal error")
				}
			}()
			return next(ctx, req)
		}
	}
}
