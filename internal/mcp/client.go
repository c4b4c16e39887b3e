package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/placefinder/internal/observability"
)

// Client speaks MCP to a single location tool provider. The tool list is
// negotiated once at Connect and never changes for the life of the client.
type Client struct {
	config    *ServerConfig
	transport Transport
	logger    *observability.Logger

	tools      []*Tool
	serverInfo ServerInfo
}

// NewClient creates a client over a stdio transport.
func NewClient(cfg *ServerConfig, logger *observability.Logger) *Client {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Client{
		config:    cfg,
		transport: NewStdioTransport(cfg, logger),
		logger:    logger.WithFields("mcp_server", cfg.Name),
	}
}

// newClientWithTransport wires an explicit transport, for tests.
func newClientWithTransport(cfg *ServerConfig, transport Transport, logger *observability.Logger) *Client {
	c := NewClient(cfg, logger)
	c.transport = transport
	return c
}

// Connect starts the transport, performs the initialize handshake, and loads
// the immutable tool list. The server must advertise the tools capability.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "placefinder",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse initialize result: %w", err)
	}
	if initResult.Capabilities.Tools == nil {
		c.transport.Close()
		return fmt.Errorf("server %q does not expose tools", initResult.ServerInfo.Name)
	}

	c.serverInfo = initResult.ServerInfo
	c.logger.Info(ctx, "connected to location server",
		"name", c.serverInfo.Name,
		"version", c.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn(ctx, "failed to send initialized notification", "error", err)
	}

	toolsRaw, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("tools/list: %w", err)
	}
	var listResult ListToolsResult
	if err := json.Unmarshal(toolsRaw, &listResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("parse tools/list result: %w", err)
	}
	c.tools = listResult.Tools
	c.logger.Info(ctx, "discovered location tools", "count", len(c.tools))

	return nil
}

// Close closes the connection to the server.
func (c *Client) Close() error {
	return c.transport.Close()
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo {
	return c.serverInfo
}

// Connected reports whether the client is connected.
func (c *Client) Connected() bool {
	return c.transport.Connected()
}

// Tools returns a copy of the tool list negotiated at connect time.
func (c *Client) Tools() []*Tool {
	out := make([]*Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// CallTool calls a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	params := CallToolParams{Name: name}
	if arguments != nil {
		argsJSON, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("marshal arguments: %w", err)
		}
		params.Arguments = argsJSON
	}

	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}
	return &callResult, nil
}
