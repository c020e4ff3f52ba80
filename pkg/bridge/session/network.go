package session

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

// networkSession is the shared implementation backing both the SSE and
// streamable-HTTP transports: both are plain HTTP-based mcp-go clients
// differing only in which constructor builds them, so the session
// contract's behavior (handshake, capability fetch, call dispatch,
// ping, close) is identical once the *client.Client exists.
type networkSession struct {
	name     string
	client   *client.Client
	limiter  *limiter
	timeouts bridge.Timeouts
}

// NewSSESession connects to a backend over the Server-Sent-Events
// transport. Outgoing auth headers are computed once per request via the
// descriptor's configured strategy (spec.md §4.1).
func NewSSESession(ctx context.Context, descriptor bridge.BackendDescriptor) (Session, error) {
	httpClient := httpClientFor(descriptor.Network.Headers, NewHeaderSource(descriptor.Auth))
	c, err := client.NewSSEMCPClient(descriptor.Network.URL, client.WithHTTPClient(httpClient))
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.KindTransportFailure, "creating SSE client", err).WithBackend(descriptor.Name)
	}
	return startNetworkSession(ctx, descriptor, c)
}

// NewStreamableHTTPSession connects to a backend over the streamable-HTTP
// transport.
func NewStreamableHTTPSession(ctx context.Context, descriptor bridge.BackendDescriptor) (Session, error) {
	httpClient := httpClientFor(descriptor.Network.Headers, NewHeaderSource(descriptor.Auth))
	c, err := client.NewStreamableHttpClient(descriptor.Network.URL, client.WithHTTPClient(httpClient))
	if err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.KindTransportFailure, "creating streamable-HTTP client", err).WithBackend(descriptor.Name)
	}
	return startNetworkSession(ctx, descriptor, c)
}

func startNetworkSession(ctx context.Context, descriptor bridge.BackendDescriptor, c *client.Client) (Session, error) {
	timeouts := descriptor.Timeouts.WithDefaults()
	startCtx, cancel := context.WithTimeout(ctx, timeouts.StartDelay)
	defer cancel()

	if err := c.Start(startCtx); err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.KindTransportFailure, "starting network backend", err).WithBackend(descriptor.Name)
	}

	return &networkSession{
		name:     descriptor.Name,
		client:   c,
		limiter:  newLimiter(defaultMaxOutstanding),
		timeouts: timeouts,
	}, nil
}

func (s *networkSession) Initialize(ctx context.Context) (ServerInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.Init)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "mcpfabric", Version: "0.1.0"}

	result, err := s.client.Initialize(ctx, req)
	if err != nil {
		return ServerInfo{}, classifyTransportErr(ctx, err).WithBackend(s.name)
	}
	return ServerInfo{Name: result.ServerInfo.Name, Version: result.ServerInfo.Version}, nil
}

func (s *networkSession) ListCapabilities(ctx context.Context, kind bridge.CapabilityKind) ([]bridge.Capability, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.CapFetch)
	defer cancel()
	return listCapabilities(ctx, s.client, kind, s.name)
}

func (s *networkSession) Call(ctx context.Context, kind bridge.CapabilityKind, name string, args map[string]any) (Result, error) {
	release, overloaded := s.limiter.acquire(ctx)
	defer release()
	if overloaded {
		return Result{}, bridgeerrors.New(bridgeerrors.KindBackendOverloaded, fmt.Sprintf("backend %q at outstanding-request cap", s.name)).WithBackend(s.name)
	}
	return callBackend(ctx, s.client, kind, name, args, s.name)
}

func (s *networkSession) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return classifyTransportErr(ctx, err).WithBackend(s.name)
	}
	return nil
}

func (s *networkSession) Close() error {
	return s.client.Close()
}

// NewFactory returns the Factory the client manager uses to dispatch to
// the right transport constructor by descriptor.Transport.
func NewFactory() Factory {
	return func(ctx context.Context, descriptor bridge.BackendDescriptor) (Session, error) {
		switch descriptor.Transport {
		case bridge.TransportStdio:
			return NewStdioSession(ctx, descriptor)
		case bridge.TransportSSE:
			return NewSSESession(ctx, descriptor)
		case bridge.TransportStreamableHTTP:
			return NewStreamableHTTPSession(ctx, descriptor)
		default:
			return nil, bridgeerrors.New(bridgeerrors.KindInvalidRequest, fmt.Sprintf("unknown transport kind %q", descriptor.Transport)).WithBackend(descriptor.Name)
		}
	}
}
