package tools

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/mcp"
)

// toolCaller is the slice of the MCP client the bridge needs.
type toolCaller interface {
	CallTool(ctx context.Context, name string, arguments map[string]any) (*mcp.ToolCallResult, error)
}

// bridgedTool adapts one discovered location tool to the Tool interface.
// The schema comes from the server's negotiated tool list as-is.
type bridgedTool struct {
	caller      toolCaller
	name        string
	description string
	schema      map[string]any
}

// Bridge wraps the tools a connected MCP client discovered. Tools whose
// schemas do not decode fall back to the permissive schema rather than being
// dropped.
func Bridge(client *mcp.Client) []Tool {
	return bridgeTools(client, client.Tools())
}

func bridgeTools(caller toolCaller, discovered []*mcp.Tool) []Tool {
	out := make([]Tool, 0, len(discovered))
	for _, t := range discovered {
		schema := permissiveSchema()
		if len(t.InputSchema) > 0 {
			var decoded map[string]any
			if err := json.Unmarshal(t.InputSchema, &decoded); err == nil {
				schema = decoded
			}
		}
		out = append(out, &bridgedTool{
			caller:      caller,
			name:        t.Name,
			description: t.Description,
			schema:      schema,
		})
	}
	return out
}

func (b *bridgedTool) Name() string { return b.name }
func (b *bridgedTool) Description() string { return b.description }
func (b *bridgedTool) Schema() map[string]any { return b.schema }
func (b *bridgedTool) ReturnSchema() map[string]any { return nil }

// Execute forwards the call over the MCP connection. A result flagged as an
// error by the server becomes a tool execution fault.
func (b *bridgedTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	result, err := b.caller.CallTool(ctx, b.name, args)
	if err != nil {
		return nil, faults.Classify(err).WithTool(b.name)
	}
	text := result.Text()
	if result.IsError {
		return nil, faults.Newf(faults.CategoryToolExecution, faults.SeverityMedium,
			"location tool reported an error: %s", text).WithTool(b.name)
	}
	return text, nil
}
