package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

// Telemetry is spec.md §4.7 point 4: opens a span named
// mcp.<method>.<capability>, and records a request counter and duration
// histogram labeled by method/backend/success. Grounded on the teacher's
// tracerProvider/meterProvider injection shape
// (pkg/telemetry/middleware_test.go's NewHTTPMiddleware), adapted from
// net/http to the bridge's own Handler.
func Telemetry(tracer trace.Tracer, requests *prometheus.CounterVec, duration *prometheus.HistogramVec) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req router.Request) (session.Result, error) {
			spanName := fmt.Sprintf("mcp.%s.%s", req.Method, req.ExposedName)
			ctx, span := tracer.Start(ctx, spanName)
			defer span.End()

			start := time.Now()
			result, err := next(ctx, req)
			elapsed := time.Since(start).Seconds()

			backend := ""
			success := err == nil
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				span.SetAttributes(attribute.String("error.kind", string(bridgeerrors.Classify(err))))
				var e *bridgeerrors.Error
				if asErr, ok := err.(*bridgeerrors.Error); ok {
					e = asErr
				}
				if e != nil {
					backend = e.BackendName
				}
			}
			span.SetAttributes(
				attribute.String("mcp.method", string(req.Method)),
				attribute.String("mcp.capability", req.ExposedName),
				attribute.Bool("mcp.success", success),
			)

			labels := prometheus.Labels{
				"method":  string(req.Method),
				"backend": backend,
				"success": fmt.Sprintf("%t", success),
			}
			requests.With(labels).Inc()
			duration.With(labels).Observe(elapsed)

			return result, err
		}
	}
}
