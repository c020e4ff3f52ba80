package middleware

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/audit"
	"github.com/mcpfabric/gateway/pkg/bridge/auth"
	"github.com/mcpfabric/gateway/pkg/bridge/authz"
	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

func okTerminal(_ context.Context, _ router.Request) (session.Result, error) {
	return session.Result{Tool: &bridge.ToolCallResult{}}, nil
}

func panicTerminal(_ context.Context, _ router.Request) (session.Result, error) {
	panic("boom")
}

func TestRecovery_ConvertsPanicToInternal(t *testing.T) {
	t.Parallel()

	h := Recovery()(panicTerminal)
	_, err := h(context.Background(), router.Request{})
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindInternal, bridgeerrors.Classify(err))
}

func TestRecovery_PassesThroughSuccess(t *testing.T) {
	t.Parallel()

	h := Recovery()(okTerminal)
	result, err := h(context.Background(), router.Request{})
	require.NoError(t, err)
	assert.NotNil(t, result.Tool)
}

func TestAuthentication_AttachesIdentity(t *testing.T) {
	t.Parallel()

	var captured bridge.Identity
	next := func(ctx context.Context, _ router.Request) (session.Result, error) {
		captured = bridge.IdentityFromContext(ctx)
		return session.Result{}, nil
	}
	h := Authentication(auth.NewLocalProvider("secret"))(next)

	ctx := bridge.WithBearerToken(context.Background(), "secret")
	_, err := h(ctx, router.Request{})
	require.NoError(t, err)
	assert.Equal(t, "local", captured.Subject)
}

func TestAuthentication_RejectsBadToken(t *testing.T) {
	t.Parallel()

	h := Authentication(auth.NewLocalProvider("secret"))(okTerminal)
	ctx := bridge.WithBearerToken(context.Background(), "wrong")
	_, err := h(ctx, router.Request{})
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindUnauthenticated, bridgeerrors.Classify(err))
}

func TestAuthorization_DeniesAndAllows(t *testing.T) {
	t.Parallel()

	engine, err := authz.New(true, authz.EffectDeny, []authz.Policy{
		{Effect: authz.EffectAllow, Roles: []string{"admin"}, Resources: []string{"*"}},
	})
	require.NoError(t, err)

	h := Authorization(engine)(okTerminal)

	ctx := bridge.WithIdentity(context.Background(), bridge.Identity{Subject: "u", Groups: []string{"admin"}})
	_, err = h(ctx, router.Request{Method: bridge.KindTool, ExposedName: "search"})
	assert.NoError(t, err)

	ctx = bridge.WithIdentity(context.Background(), bridge.Identity{Subject: "u", Groups: []string{"guest"}})
	_, err = h(ctx, router.Request{Method: bridge.KindTool, ExposedName: "search"})
	require.Error(t, err)
	assert.Equal(t, bridgeerrors.KindForbidden, bridgeerrors.Classify(err))
}

func TestTelemetry_RecordsMetricsOnSuccessAndError(t *testing.T) {
	t.Parallel()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_requests_total"}, []string{"method", "backend", "success"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_duration_seconds"}, []string{"method", "backend", "success"})
	tracer := tracenoop.NewTracerProvider().Tracer("test")

	h := Telemetry(tracer, requests, duration)(okTerminal)
	_, err := h(context.Background(), router.Request{Method: bridge.KindTool, ExposedName: "search"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(requests.With(prometheus.Labels{"method": "tool", "backend": "", "success": "true"})))

	failing := func(context.Context, router.Request) (session.Result, error) {
		return session.Result{}, bridgeerrors.New(bridgeerrors.KindBackendUnavailable, "down").WithBackend("weather")
	}
	h2 := Telemetry(tracer, requests, duration)(failing)
	_, err = h2(context.Background(), router.Request{Method: bridge.KindTool, ExposedName: "search"})
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(requests.With(prometheus.Labels{"method": "tool", "backend": "weather", "success": "false"})))
}

func TestAudit_RecordsOneEventPerRequest(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	recorder := audit.NewRecorder(sink)
	h := Audit(recorder)(okTerminal)

	ctx := bridge.WithIdentity(context.Background(), bridge.Identity{Subject: "u"})
	ctx = bridge.WithUpstreamSession(ctx, "sess-1")
	_, err := h(ctx, router.Request{Method: bridge.KindTool, ExposedName: "search"})
	require.NoError(t, err)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "sess-1", sink.events[0].Source.SessionID)
	assert.Equal(t, "search", sink.events[0].Target.ExposedName)
}

type recordingSink struct {
	events []*audit.Event
}

func (s *recordingSink) Record(_ context.Context, e *audit.Event) { s.events = append(s.events, e) }
func (s *recordingSink) Dropped() uint64                          { return 0 }
func (s *recordingSink) Close() error                             { return nil }

func TestBuild_OmitsDisabledLayers(t *testing.T) {
	t.Parallel()

	h := Build(okTerminal, Options{AuthProvider: auth.AnonymousProvider{}})
	_, err := h(context.Background(), router.Request{Method: bridge.KindTool, ExposedName: "search"})
	assert.NoError(t, err)
}
