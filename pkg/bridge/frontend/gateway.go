// Package frontend implements the inbound MCP transport surface
// (spec.md §4.13): the gateway's own MCP server identity, exposing the
// aggregated tool/resource/prompt set to upstream MCP clients over
// stdio, SSE, or streamable-HTTP, and dispatching every call through the
// middleware chain built by pkg/bridge/middleware.
//
// Grounded on _examples/giantswarm-muster/internal/aggregator/server.go's
// AggregatorServer (mcpserver.NewMCPServer + transport construction) and
// server_helpers.go's per-capability handler factories, the closest match
// in the retrieved pack for a gateway that owns its own inbound MCP
// identity rather than only calling out to one; the teacher's own
// cmd/thv/app/mcp_serve.go supplies the streamable-HTTP
// WithHTTPContextFunc bearer-token wiring this package reuses.
package frontend

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mcpfabric/gateway/pkg/bridge"
	"github.com/mcpfabric/gateway/pkg/bridge/middleware"
	"github.com/mcpfabric/gateway/pkg/bridge/router"
	"github.com/mcpfabric/gateway/pkg/bridge/session"
	"github.com/mcpfabric/gateway/pkg/bridge/upstream"
	"github.com/mcpfabric/gateway/pkg/logger"
)

// Registry is the subset of bridge.Registry the gateway reads to build and
// rebuild its exposed capability set.
type Registry interface {
	Snapshot() *bridge.RouteMap
}

// Gateway owns the gateway's own inbound MCP server identity. One Gateway
// serves every transport the configuration enables; all of them share the
// same underlying *mcpserver.MCPServer and the same dispatch path.
type Gateway struct {
	registry Registry
	tracker  *upstream.Tracker
	handler  middleware.Handler

	mcpServer *mcpserver.MCPServer

	readHeaderTimeout time.Duration
}

const DefaultReadHeaderTimeout = 10 * time.Second

// New builds a Gateway. handler is the fully assembled middleware chain
// (the output of middleware.Build) the gateway dispatches every inbound
// call through.
func New(name, version string, registry Registry, tracker *upstream.Tracker, handler middleware.Handler) *Gateway {
	g := &Gateway{registry: registry, tracker: tracker, handler: handler, readHeaderTimeout: DefaultReadHeaderTimeout}
	g.mcpServer = mcpserver.NewMCPServer(
		name, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithPromptCapabilities(true),
	)
	return g
}

// Sync rebuilds the gateway's advertised tool/resource/prompt set from the
// registry's current snapshot. Called once at startup and again after
// every reload publishes a new route map, mirroring the teacher's
// updateCapabilities: add what's new, remove what dropped out, leave the
// rest untouched so in-flight calls to unchanged capabilities are never
// disrupted.
func (g *Gateway) Sync() {
	rm := g.registry.Snapshot()

	tools := rm.List(bridge.KindTool)
	serverTools := make([]mcpserver.ServerTool, 0, len(tools))
	toolNames := make([]string, 0, len(tools))
	for _, c := range tools {
		serverTools = append(serverTools, mcpserver.ServerTool{Tool: toMCPTool(c), Handler: g.toolHandler(c.ExposedName)})
		toolNames = append(toolNames, c.ExposedName)
	}
	g.mcpServer.DeleteTools(toolNames...)
	g.mcpServer.AddTools(serverTools...)

	prompts := rm.List(bridge.KindPrompt)
	serverPrompts := make([]mcpserver.ServerPrompt, 0, len(prompts))
	promptNames := make([]string, 0, len(prompts))
	for _, c := range prompts {
		serverPrompts = append(serverPrompts, mcpserver.ServerPrompt{Prompt: toMCPPrompt(c), Handler: g.promptHandler(c.ExposedName)})
		promptNames = append(promptNames, c.ExposedName)
	}
	g.mcpServer.DeletePrompts(promptNames...)
	g.mcpServer.AddPrompts(serverPrompts...)

	resources := rm.List(bridge.KindResource)
	for _, c := range resources {
		g.mcpServer.RemoveResource(c.URI)
	}
	for _, c := range resources {
		g.mcpServer.AddResource(toMCPResource(c), g.resourceHandler(c.URI))
	}

	logger.Infow("gateway capability set synced", "tools", len(tools), "resources", len(resources), "prompts", len(prompts))
}

func toMCPTool(c bridge.Capability) mcp.Tool {
	return mcp.Tool{
		Name:        c.ExposedName,
		Description: c.Description,
		InputSchema: mcp.ToolInputSchema{Type: "object", Properties: c.InputSchema},
	}
}

func toMCPPrompt(c bridge.Capability) mcp.Prompt {
	args := make([]mcp.PromptArgument, 0, len(c.Arguments))
	for _, a := range c.Arguments {
		args = append(args, mcp.PromptArgument{Name: a.Name, Description: a.Description, Required: a.Required})
	}
	return mcp.Prompt{Name: c.ExposedName, Description: c.Description, Arguments: args}
}

func toMCPResource(c bridge.Capability) mcp.Resource {
	return mcp.Resource{URI: c.URI, Name: c.ExposedName, Description: c.Description, MIMEType: c.MIMEType}
}

// dispatch is the one call path every capability-kind handler funnels
// through: stamp the calling upstream session's frozen route snapshot
// (spec.md §4.12) onto the request, then run it through the middleware
// chain.
func (g *Gateway) dispatch(ctx context.Context, kind bridge.CapabilityKind, exposedName string, args map[string]any) (session.Result, error) {
	var snapshot *bridge.RouteMap
	if sessionID, ok := sessionIDFromContext(ctx); ok {
		snapshot = g.tracker.Touch(sessionID).Snapshot
	}
	return g.handler(ctx, router.Request{Method: kind, ExposedName: exposedName, Args: args, Snapshot: snapshot})
}

func (g *Gateway) toolHandler(exposedName string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := req.Params.Arguments.(map[string]interface{})
		result, err := g.dispatch(ctx, bridge.KindTool, exposedName, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return toMCPCallToolResult(result.Tool), nil
	}
}

func (g *Gateway) promptHandler(exposedName string) func(context.Context, mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		args := make(map[string]any, len(req.Params.Arguments))
		for k, v := range req.Params.Arguments {
			args[k] = v
		}
		result, err := g.dispatch(ctx, bridge.KindPrompt, exposedName, args)
		if err != nil {
			return nil, err
		}
		return toMCPGetPromptResult(result.Prompt), nil
	}
}

func (g *Gateway) resourceHandler(exposedURI string) func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		result, err := g.dispatch(ctx, bridge.KindResource, exposedURI, nil)
		if err != nil {
			return nil, err
		}
		return toMCPResourceContents(exposedURI, result.Resource), nil
	}
}

func toMCPCallToolResult(r *bridge.ToolCallResult) *mcp.CallToolResult {
	if r == nil {
		return mcp.NewToolResultText("")
	}
	content := make([]mcp.Content, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" || c.Text != "" {
			content = append(content, mcp.NewTextContent(c.Text))
			continue
		}
		content = append(content, mcp.NewTextContent(string(c.Data)))
	}
	return &mcp.CallToolResult{Content: content, IsError: r.IsError}
}

func toMCPGetPromptResult(r *bridge.PromptGetResult) *mcp.GetPromptResult {
	if r == nil {
		return &mcp.GetPromptResult{}
	}
	messages := make([]mcp.PromptMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, mcp.PromptMessage{Role: mcp.RoleAssistant, Content: mcp.NewTextContent(m.Text)})
	}
	return &mcp.GetPromptResult{Description: r.Description, Messages: messages}
}

func toMCPResourceContents(uri string, r *bridge.ResourceReadResult) []mcp.ResourceContents {
	if r == nil {
		return nil
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{URI: uri, MIMEType: r.MIMEType, Text: string(r.Contents)}}
}

// sessionIDFromContext extracts the upstream session ID the mcp-go server
// attaches to every dispatched request's context, the same way
// getSessionIDFromContext does in the teacher's reference aggregator.
func sessionIDFromContext(ctx context.Context) (string, bool) {
	cs := mcpserver.ClientSessionFromContext(ctx)
	if cs == nil {
		return "", false
	}
	id := cs.SessionID()
	return id, id != ""
}

// Stdio serves the gateway over standard input/output until ctx is
// cancelled. A stdio-connected client has no per-call credential channel
// the way an HTTP Authorization header gives one, so WithBearerToken is
// never set here: stdio is the trusted-local-process transport. Nothing
// rejects pairing it with an incoming-auth configuration other than
// anonymous; config validation does not see the transport choice.
func (g *Gateway) Stdio(ctx context.Context) error {
	logger.Infow("starting gateway", "transport", "stdio")
	srv := mcpserver.NewStdioServer(g.mcpServer)
	return srv.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeStreamableHTTP serves the gateway over streamable-HTTP at
// endpointPath, blocking until ctx is cancelled. Grounded on the teacher's
// cmd/thv/app/mcp_serve.go: a bare *http.Server wrapping
// server.NewStreamableHTTPServer, with WithHTTPContextFunc injecting the
// inbound request's bearer token and remote address into the context the
// tool/resource/prompt handlers see, so the authentication middleware
// layer can authenticate the call the same way it would for any other
// transport.
func (g *Gateway) ServeStreamableHTTP(ctx context.Context, address, endpointPath string) error {
	streamable := mcpserver.NewStreamableHTTPServer(
		g.mcpServer,
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHTTPContextFunc(func(reqCtx context.Context, r *http.Request) context.Context {
			reqCtx = bridge.WithClientAddr(reqCtx, r.RemoteAddr)
			if token := bearerToken(r); token != "" {
				reqCtx = bridge.WithBearerToken(reqCtx, token)
			}
			return reqCtx
		}),
	)

	srv := &http.Server{
		Addr:              address,
		Handler:           streamable,
		ReadHeaderTimeout: g.readHeaderTimeout,
	}

	logger.Infow("starting gateway", "transport", "streamable-http", "address", address, "path", endpointPath)
	return serveUntilCancelled(ctx, srv)
}

// ServeSSE serves the gateway over the legacy SSE transport at
// basePath's /sse and /message endpoints, blocking until ctx is
// cancelled. Grounded on the same WithBaseURL/WithSSEEndpoint/
// WithMessageEndpoint shape the reference aggregator uses.
func (g *Gateway) ServeSSE(ctx context.Context, address, baseURL string) error {
	sse := mcpserver.NewSSEServer(
		g.mcpServer,
		mcpserver.WithBaseURL(baseURL),
		mcpserver.WithSSEEndpoint("/sse"),
		mcpserver.WithMessageEndpoint("/message"),
		mcpserver.WithHTTPContextFunc(func(reqCtx context.Context, r *http.Request) context.Context {
			reqCtx = bridge.WithClientAddr(reqCtx, r.RemoteAddr)
			if token := bearerToken(r); token != "" {
				reqCtx = bridge.WithBearerToken(reqCtx, token)
			}
			return reqCtx
		}),
	)

	srv := &http.Server{
		Addr:              address,
		Handler:           sse,
		ReadHeaderTimeout: g.readHeaderTimeout,
	}

	logger.Infow("starting gateway", "transport", "sse", "address", address)
	return serveUntilCancelled(ctx, srv)
}

func serveUntilCancelled(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway transport shutdown failed: %w", err)
	}
	return nil
}

const bearerPrefix = "Bearer "

// bearerToken extracts the raw credential from an inbound request's
// Authorization header, the per-transport equivalent of the static/OIDC
// token spec.md §4.2's incoming-auth layer expects to find in context.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > len(bearerPrefix) && h[:len(bearerPrefix)] == bearerPrefix {
		return h[len(bearerPrefix):]
	}
	return ""
}
