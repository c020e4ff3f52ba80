package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpfabric/gateway/pkg/bridge"
	bridgeerrors "github.com/mcpfabric/gateway/pkg/errors"
)

// listCapabilities fetches one kind's raw catalog from an mcp-go client,
// shared across all three transport implementations since mcp-go exposes
// the same client API regardless of transport.
func listCapabilities(ctx context.Context, c *client.Client, kind bridge.CapabilityKind, backend string) ([]bridge.Capability, error) {
	switch kind {
	case bridge.KindTool:
		result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return nil, classifyTransportErr(ctx, err).WithBackend(backend)
		}
		out := make([]bridge.Capability, 0, len(result.Tools))
		for _, t := range result.Tools {
			out = append(out, toolToCapability(t))
		}
		return out, nil
	case bridge.KindResource:
		result, err := c.ListResources(ctx, mcp.ListResourcesRequest{})
		if err != nil {
			return nil, classifyTransportErr(ctx, err).WithBackend(backend)
		}
		out := make([]bridge.Capability, 0, len(result.Resources))
		for _, r := range result.Resources {
			out = append(out, resourceToCapability(r))
		}
		return out, nil
	case bridge.KindPrompt:
		result, err := c.ListPrompts(ctx, mcp.ListPromptsRequest{})
		if err != nil {
			return nil, classifyTransportErr(ctx, err).WithBackend(backend)
		}
		out := make([]bridge.Capability, 0, len(result.Prompts))
		for _, p := range result.Prompts {
			out = append(out, promptToCapability(p))
		}
		return out, nil
	default:
		return nil, bridgeerrors.New(bridgeerrors.KindInvalidRequest, fmt.Sprintf("unknown capability kind %q", kind))
	}
}

// callBackend dispatches one call_tool/read_resource/get_prompt invocation
// using the backend's original name, shared across transports.
func callBackend(ctx context.Context, c *client.Client, kind bridge.CapabilityKind, name string, args map[string]any, backend string) (Result, error) {
	switch kind {
	case bridge.KindTool:
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = argsToMCP(args)
		result, err := c.CallTool(ctx, req)
		if err != nil {
			return Result{}, classifyTransportErr(ctx, err).WithBackend(backend)
		}
		return Result{Tool: toolCallResultFromMCP(result)}, nil

	case bridge.KindResource:
		req := mcp.ReadResourceRequest{}
		req.Params.URI = name
		result, err := c.ReadResource(ctx, req)
		if err != nil {
			return Result{}, classifyTransportErr(ctx, err).WithBackend(backend)
		}
		return Result{Resource: resourceReadResultFromMCP(result)}, nil

	case bridge.KindPrompt:
		req := mcp.GetPromptRequest{}
		req.Params.Name = name
		if args != nil {
			strArgs := make(map[string]string, len(args))
			for k, v := range args {
				strArgs[k] = fmt.Sprintf("%v", v)
			}
			req.Params.Arguments = strArgs
		}
		result, err := c.GetPrompt(ctx, req)
		if err != nil {
			return Result{}, classifyTransportErr(ctx, err).WithBackend(backend)
		}
		return Result{Prompt: promptGetResultFromMCP(result)}, nil

	default:
		return Result{}, bridgeerrors.New(bridgeerrors.KindInvalidRequest, fmt.Sprintf("unknown method kind %q", kind))
	}
}

// classifyTransportErr maps an mcp-go client error into the bridge's error
// taxonomy (spec.md §4.1): context cancellation/deadline becomes timeout or
// cancelled, an RPC-level error response becomes backend_error, anything
// else becomes transport_failure or invalid_response depending on whether
// mcp-go itself recognized the failure as a decode problem.
func classifyTransportErr(ctx context.Context, err error) *bridgeerrors.Error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return bridgeerrors.Wrap(bridgeerrors.KindCancelled, "request cancelled", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return bridgeerrors.Wrap(bridgeerrors.KindTimeout, "backend call timed out", err)
	}

	// mcp-go surfaces a structured backend error response as an error value
	// carrying a JSON-RPC code/message pair; duck-type on that shape rather
	// than naming a concrete mcp-go type, since the wrapper type differs
	// across client versions.
	if rpcErr, ok := asRPCError(err); ok {
		return bridgeerrors.Wrap(bridgeerrors.KindBackendError, rpcErr.Error(), err)
	}

	if isDecodeErr(err) {
		return bridgeerrors.Wrap(bridgeerrors.KindInvalidResponse, "malformed backend response", err)
	}

	return bridgeerrors.Wrap(bridgeerrors.KindTransportFailure, "backend transport failure", err)
}

type rpcError interface {
	error
	RPCErrorCode() int
}

func asRPCError(err error) (rpcError, bool) {
	var rpc rpcError
	if errors.As(err, &rpc) {
		return rpc, true
	}
	return nil, false
}

func isDecodeErr(err error) bool {
	var decodeErr interface{ DecodeFailure() bool }
	return errors.As(err, &decodeErr)
}
