package session

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// stdioSession wraps the mark3labs/mcp-go stdio client transport: the
// local-subprocess backend contract spec.md §4.1 describes, including the
// terminal-output-hygiene requirement (§9) that backend stderr is captured
// line-buffered and routed to the operator log, never the process's own
// terminal.
type stdioSession struct {
	name      string
	client    *client.Client
	limiter   *limiter
	timeouts  bridge.Timeouts
}

// NewStdioSession starts the backend's subprocess and returns a Session
// bound to it. The caller (client manager) is responsible for calling
// Initialize within the descriptor's init timeout.
func NewStdioSession(ctx context.Context, descriptor bridge.BackendDescriptor) (Session, error) {
	env := make([]string, 0, len(descriptor.Stdio.Env))
	for k, v := range descriptor.Stdio.Env {
		env = append(env, k+"="+v)
	}

	t := transport.NewStdio(descriptor.Stdio.Command, env, descriptor.Stdio.Args...)
	c := client.NewClient(t)

	if err := c.Start(ctx); err != nil {
		return nil, bridgeerrors.Wrap(bridgeerrors.KindTransportFailure, "starting stdio backend", err).WithBackend(descriptor.Name)
	}

	if stderrReader, ok := anyStderr(t); ok {
		go captureStderr(descriptor.Name, stderrReader)
	}

	return &stdioSession{
		name:     descriptor.Name,
		client:   c,
		limiter:  newLimiter(defaultMaxOutstanding),
		timeouts: descriptor.Timeouts.WithDefaults(),
	}, nil
}

// anyStderr type-asserts for a Stderr() io.Reader accessor without coupling
// this package to a specific mcp-go transport struct name across versions.
func anyStderr(t any) (io.Reader, bool) {
	s, ok := t.(interface{ Stderr() io.Reader })
	if !ok {
		return nil, false
	}
	return s.Stderr(), true
}

// captureStderr line-buffers a backend subprocess's stderr and routes every
// line to the operator log with a backend-name prefix, per spec.md §9 —
// this is the correctness requirement, not a cosmetic nicety: backend
// stderr must never reach the process's own stdout/stderr.
func captureStderr(backend string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logger.Infow(scanner.Text(), "backend", backend, "stream", "stderr")
	}
}

func (s *stdioSession) Initialize(ctx context.Context) (ServerInfo, error) {
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

func (s *stdioSession) ListCapabilities(ctx context.Context, kind bridge.CapabilityKind) ([]bridge.Capability, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeouts.CapFetch)
	defer cancel()
	return listCapabilities(ctx, s.client, kind, s.name)
}

func (s *stdioSession) Call(ctx context.Context, kind bridge.CapabilityKind, name string, args map[string]any) (Result, error) {
	release, overloaded := s.limiter.acquire(ctx)
	defer release()
	if overloaded {
		return Result{}, bridgeerrors.New(bridgeerrors.KindBackendOverloaded, fmt.Sprintf("backend %q at outstanding-request cap", s.name)).WithBackend(s.name)
	}
	return callBackend(ctx, s.client, kind, name, args, s.name)
}

func (s *stdioSession) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return classifyTransportErr(ctx, err).WithBackend(s.name)
	}
	return nil
}

func (s *stdioSession) Close() error {
	return s.client.Close()
}
