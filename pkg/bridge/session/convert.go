package session

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpfabric/gateway/pkg/bridge"
)

// toolToCapability converts one mcp-go Tool into the bridge's raw
// Capability shape. Filtering, renaming, and backend attribution happen
// one layer up (pkg/bridge/aggregator); this only translates wire types.
func toolToCapability(t mcp.Tool) bridge.Capability {
	var schema map[string]any
	if raw, err := t.InputSchema.MarshalJSON(); err == nil {
		schema = map[string]any{"raw": string(raw)}
	}
	return bridge.Capability{
		Kind:        bridge.KindTool,
		ExposedName: t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

func resourceToCapability(r mcp.Resource) bridge.Capability {
	return bridge.Capability{
		Kind:        bridge.KindResource,
		ExposedName: r.Name,
		Description: r.Description,
		URI:         r.URI,
		MIMEType:    r.MIMEType,
	}
}

func promptToCapability(p mcp.Prompt) bridge.Capability {
	args := make([]bridge.PromptArgument, 0, len(p.Arguments))
	for _, a := range p.Arguments {
		args = append(args, bridge.PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return bridge.Capability{
		Kind:        bridge.KindPrompt,
		ExposedName: p.Name,
		Description: p.Description,
		Arguments:   args,
	}
}

func contentFromMCP(blocks []mcp.Content) []bridge.Content {
	out := make([]bridge.Content, 0, len(blocks))
	for _, b := range blocks {
		switch c := b.(type) {
		case mcp.TextContent:
			out = append(out, bridge.Content{Type: "text", Text: c.Text})
		case mcp.ImageContent:
			out = append(out, bridge.Content{Type: "image", Data: []byte(c.Data), MIME: c.MIMEType})
		default:
			out = append(out, bridge.Content{Type: "unknown"})
		}
	}
	return out
}

func toolCallResultFromMCP(r *mcp.CallToolResult) *bridge.ToolCallResult {
	if r == nil {
		return &bridge.ToolCallResult{}
	}
	return &bridge.ToolCallResult{
		Content: contentFromMCP(r.Content),
		IsError: r.IsError,
	}
}

func resourceReadResultFromMCP(r *mcp.ReadResourceResult) *bridge.ResourceReadResult {
	out := &bridge.ResourceReadResult{}
	if r == nil {
		return out
	}
	for _, c := range r.Contents {
		switch rc := c.(type) {
		case mcp.TextResourceContents:
			out.Contents = append(out.Contents, []byte(rc.Text)...)
			out.MIMEType = rc.MIMEType
		case mcp.BlobResourceContents:
			out.Contents = append(out.Contents, []byte(rc.Blob)...)
			out.MIMEType = rc.MIMEType
		}
	}
	return out
}

func promptGetResultFromMCP(r *mcp.GetPromptResult) *bridge.PromptGetResult {
	if r == nil {
		return &bridge.PromptGetResult{}
	}
	out := &bridge.PromptGetResult{Description: r.Description}
	for _, m := range r.Messages {
		out.Messages = append(out.Messages, contentFromMCP([]mcp.Content{m.Content})...)
	}
	return out
}

func argsToMCP(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
