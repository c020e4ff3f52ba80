package bridge

import "context"

// Identity is the caller identity resolved by the authentication layer and
// threaded through the rest of the middleware chain. The zero value is the
// anonymous identity used when authentication is disabled.
type Identity struct {
	Subject string
	Name    string
	Email   string
	Groups  []string

	// Token is the raw bearer credential presented upstream, kept only for
	// strategies (e.g. token passthrough) that need to forward it to a
	// backend; never written to the audit log or operator log.
	Token string
}

// Anonymous reports whether this is the zero-value identity.
func (i Identity) Anonymous() bool {
	return i.Subject == ""
}

// RequestContext carries the per-request values the middleware chain and
// router need, beyond what context.Context's key-value bag is used for
// elsewhere: the resolved identity and the frozen route snapshot for this
// upstream session.
type RequestContext struct {
	Identity       Identity
	UpstreamSession string
	Snapshot       *RouteMap
}

type ctxKey int

const (
	ctxKeyIdentity ctxKey = iota
	ctxKeySnapshot
	ctxKeyUpstreamSession
	ctxKeyBearerToken
	ctxKeyClientAddr
)

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, identity)
}

// IdentityFromContext returns the identity stored in ctx, or the anonymous
// identity if none was stored.
func IdentityFromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(Identity)
	return id
}

// WithRouteSnapshot returns a copy of ctx carrying a frozen RouteMap — used
// so that every capability lookup within one upstream session's list_tools
// call (and the calls it informs) sees a single consistent route map even
// if a reload publishes a new one concurrently.
func WithRouteSnapshot(ctx context.Context, snapshot *RouteMap) context.Context {
	return context.WithValue(ctx, ctxKeySnapshot, snapshot)
}

// RouteSnapshotFromContext returns the frozen RouteMap stored in ctx, and
// whether one was present.
func RouteSnapshotFromContext(ctx context.Context) (*RouteMap, bool) {
	rm, ok := ctx.Value(ctxKeySnapshot).(*RouteMap)
	return rm, ok
}

// WithUpstreamSession returns a copy of ctx carrying the upstream session
// ID the current request belongs to.
func WithUpstreamSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKeyUpstreamSession, sessionID)
}

// UpstreamSessionFromContext returns the upstream session ID stored in
// ctx, if any.
func UpstreamSessionFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyUpstreamSession).(string)
	return id, ok
}

// WithBearerToken returns a copy of ctx carrying the raw bearer credential
// the transport extracted from the inbound request, for the authentication
// middleware layer to consume.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearerToken, token)
}

// BearerTokenFromContext returns the bearer credential stored in ctx, if
// any.
func BearerTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(ctxKeyBearerToken).(string)
	return token, ok
}

// WithClientAddr returns a copy of ctx carrying the transport-reported
// caller address, for the audit record's source.client_address field.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ctxKeyClientAddr, addr)
}

// ClientAddrFromContext returns the caller address stored in ctx, if any.
func ClientAddrFromContext(ctx context.Context) (string, bool) {
	addr, ok := ctx.Value(ctxKeyClientAddr).(string)
	return addr, ok
}
