package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// HeaderSource computes the outgoing-auth headers a network-transport
// session attaches to every outbound request. Implementations are the two
// strategies spec.md §4.1 names: static headers and client-credentials
// token fetch.
type HeaderSource interface {
	Headers(ctx context.Context) (map[string]string, error)
}

// NewHeaderSource selects a HeaderSource for the given outgoing-auth
// configuration, or nil if auth.Kind is empty (no outgoing auth).
func NewHeaderSource(auth bridge.OutgoingAuth) HeaderSource {
	switch auth.Kind {
	case bridge.OutgoingAuthStatic:
		if auth.Static == nil {
			return nil
		}
		return staticHeaders(auth.Static.Headers)
	case bridge.OutgoingAuthClientCredentials:
		if auth.ClientCredentials == nil {
			return nil
		}
		return newClientCredentialsSource(*auth.ClientCredentials)
	default:
		return nil
	}
}

// staticHeaders is the fixed key-value-set strategy; values are already
// resolved from secrets by the configuration layer (spec.md §1), so this
// is a pure passthrough.
type staticHeaders map[string]string

func (s staticHeaders) Headers(context.Context) (map[string]string, error) {
	return map[string]string(s), nil
}

// clientCredentialsSource maintains a cached bearer token, refreshed
// before a configurable buffer of its declared expiry, with a
// single-flight guard preventing duplicate concurrent refreshes — the
// exact behavior spec.md §4.1 and end-to-end scenario 6 require.
type clientCredentialsSource struct {
	cfg     clientcredentials.Config
	buffer  time.Duration
	group   singleflight.Group
	mu      sync.RWMutex
	cached  *oauth2.Token
}

func newClientCredentialsSource(cfg bridge.ClientCredentialsConfig) *clientCredentialsSource {
	return &clientCredentialsSource{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		},
		buffer: cfg.RefreshBuffer,
	}
}

func (c *clientCredentialsSource) Headers(ctx context.Context) (map[string]string, error) {
	tok, err := c.token(ctx)
	if err != nil {
		// spec.md §4.1: on token-fetch failure, log and proceed with no
		// bearer header rather than failing the call outright.
		logger.Warnw("outgoing auth token fetch failed, proceeding without bearer header", "error", err)
		return nil, nil
	}
	return map[string]string{"Authorization": "Bearer " + tok.AccessToken}, nil
}

func (c *clientCredentialsSource) token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.RLock()
	tok := c.cached
	c.mu.RUnlock()
	if tok != nil && !needsRefresh(tok, c.buffer) {
		return tok, nil
	}

	// single-flight: concurrent callers racing a just-expired token collapse
	// into one token-endpoint request (spec.md end-to-end scenario 6).
	v, err, _ := c.group.Do("token", func() (any, error) {
		c.mu.RLock()
		tok := c.cached
		c.mu.RUnlock()
		if tok != nil && !needsRefresh(tok, c.buffer) {
			return tok, nil
		}
		fresh, err := c.cfg.TokenSource(ctx).Token()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cached = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

func needsRefresh(tok *oauth2.Token, buffer time.Duration) bool {
	if tok.Expiry.IsZero() {
		return false
	}
	return time.Until(tok.Expiry) <= buffer
}

// headerRoundTripper attaches a HeaderSource's headers to every outbound
// request; used to build the *http.Client passed into the mcp-go SSE and
// streamable-HTTP client constructors.
type headerRoundTripper struct {
	source HeaderSource
	base   http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if h.source != nil {
		headers, err := h.source.Headers(req.Context())
		if err == nil {
			for k, v := range headers {
				req.Header.Set(k, v)
			}
		}
	}
	base := h.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// httpClientFor builds an *http.Client that injects the given static or
// network headers plus whatever HeaderSource the backend's outgoing-auth
// configuration produces.
func httpClientFor(staticHeaders map[string]string, source HeaderSource) *http.Client {
	combined := source
	if len(staticHeaders) > 0 {
		merged := map[string]string{}
		for k, v := range staticHeaders {
			merged[k] = v
		}
		combined = mergedSource{base: source, extra: merged}
	}
	return &http.Client{Transport: &headerRoundTripper{source: combined}}
}

// mergedSource layers fixed per-descriptor connect headers underneath
// whatever the outgoing-auth HeaderSource computes, letting both coexist
// (e.g. a static "X-Org" header alongside a client-credentials bearer
// token).
type mergedSource struct {
	base  HeaderSource
	extra map[string]string
}

func (m mergedSource) Headers(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m.extra {
		out[k] = v
	}
	if m.base != nil {
		fromBase, err := m.base.Headers(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range fromBase {
			out[k] = v
		}
	}
	return out, nil
}
