// Package client is the unified conversational facade: one construction path
// that resolves configuration, builds the mode-specific model handle, and
// registers the tool set, then answers one synchronous turn at a time.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/fallback"
	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/mcp"
	"github.com/haasonsaas/placefinder/internal/model"
	"github.com/haasonsaas/placefinder/internal/observability"
	"github.com/haasonsaas/placefinder/internal/protocol"
	"github.com/haasonsaas/placefinder/internal/tools"
	"github.com/haasonsaas/placefinder/internal/tools/clock"
	"github.com/haasonsaas/placefinder/internal/tools/weather"
)

// maxToolIterations bounds the tool loop within one conversational turn so a
// confused model cannot spin forever.
const maxToolIterations = 10

const defaultSystemPrompt = `You are a location and weather assistant. You help users find places,
plan routes, and understand current and upcoming weather conditions.

When the user asks about weather, resolve the location to coordinates first
if needed, then use the weather tools. Report temperatures with units and
mention active alerts when they exist. When the user asks about places or
routes, use the location tools and summarize results concisely. If a tool
fails, tell the user what you could not do rather than guessing.`

// Client answers conversational turns for one resolved deployment. Safe for
// concurrent use; turns serialize on the conversation history.
type Client struct {
	descriptor *config.Descriptor
	handle     model.Handle
	manager    *tools.Manager
	logger     *observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer

	systemPrompt string
	mcpClient    *mcp.Client
	shutdownOTel func(context.Context) error

	mu      sync.Mutex
	history []model.Message
}

// Option customizes client construction.
type Option func(*settings)

type settings struct {
	overrides    config.Overrides
	systemPrompt string
}

// WithOverrides applies explicit configuration overrides, the highest
// precedence layer.
func WithOverrides(ov config.Overrides) Option {
	return func(s *settings) { s.overrides = ov }
}

// WithSystemPrompt replaces the built-in system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *settings) { s.systemPrompt = prompt }
}

// New resolves configuration and builds a ready client: model handle, tool
// registry, observability. Location tools come from the MCP subprocess in
// local and mcp modes; in agent mode the remote agent carries them.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	descriptor, err := config.Resolve(&s.overrides)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  descriptor.Observability.LogLevel,
		Format: descriptor.Observability.LogFormat,
	})
	metrics := observability.NewMetrics(nil)

	traceEndpoint := ""
	if descriptor.TracingEnabled {
		traceEndpoint = descriptor.Observability.OTLPEndpoint
	}
	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName: descriptor.Observability.ServiceName,
		Endpoint:    traceEndpoint,
	})

	handle, err := model.New(ctx, descriptor)
	if err != nil {
		shutdown(ctx)
		return nil, err
	}

	registry := fallback.NewRegistry(descriptor.Fallback)
	executor := fallback.NewExecutor(registry,
		fallback.WithLogger(logger), fallback.WithMetrics(metrics))
	manager := tools.NewManager(executor,
		tools.WithLogger(logger), tools.WithMetrics(metrics))

	c := &Client{
		descriptor:   descriptor,
		handle:       handle,
		manager:      manager,
		logger:       logger,
		metrics:      metrics,
		tracer:       tracer,
		systemPrompt: s.systemPrompt,
		shutdownOTel: shutdown,
	}
	if c.systemPrompt == "" {
		c.systemPrompt = defaultSystemPrompt
	}

	if err := c.registerTools(ctx); err != nil {
		shutdown(ctx)
		return nil, err
	}
	logger.Info(ctx, "client ready",
		"mode", string(descriptor.Mode),
		"model", handle.ID(),
		"tools", len(manager.ForMode(descriptor.Mode)))
	return c, nil
}

func (c *Client) registerTools(ctx context.Context) error {
	nws := weather.NewNWSClient(c.descriptor.Weather)
	if err := c.manager.Register(weather.NewForecastTool(nws)); err != nil {
		return err
	}
	if err := c.manager.Register(weather.NewAlertsTool(nws)); err != nil {
		return err
	}
	if err := c.manager.Register(clock.New()); err != nil {
		return err
	}

	if c.descriptor.Mode == config.ModeAgent {
		return nil
	}

	// Location tools are optional: a failed subprocess degrades the client
	// to weather-only instead of refusing to start.
	mcpClient := mcp.NewClient(&mcp.ServerConfig{
		Name:    "aws-location",
		Command: c.descriptor.Location.Command,
		Args:    c.descriptor.Location.Args,
		Timeout: c.descriptor.Timeout,
	}, c.logger)
	if err := mcpClient.Connect(ctx); err != nil {
		c.logger.Warn(ctx, "location tools unavailable", "error", err)
		return nil
	}
	c.mcpClient = mcpClient
	for _, t := range tools.Bridge(mcpClient) {
		if err := c.manager.Register(t, config.ModeLocal, config.ModeMCP); err != nil {
			return err
		}
	}
	return nil
}

// Chat answers one conversational turn. Failures never escape as errors: the
// turn resolves to a generic, rendered reply and the fault is logged with its
// correlation id.
func (c *Client) Chat(ctx context.Context, message string) string {
	requestID := uuid.NewString()
	ctx = observability.AddRequestID(ctx, requestID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, model.Message{Role: "user", Text: message})
	specs := c.manager.Specs(c.descriptor.Mode)

	for iteration := 0; iteration < maxToolIterations; iteration++ {
		resp, err := c.converse(ctx, specs)
		if err != nil {
			return c.failTurn(ctx, err, requestID)
		}

		c.history = append(c.history, model.Message{
			Role:      "assistant",
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
		})
		if len(resp.ToolCalls) == 0 {
			return resp.Text
		}

		results := make([]model.ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			results = append(results, c.runTool(ctx, call))
		}
		c.history = append(c.history, model.Message{Role: "user", ToolResults: results})
	}

	rec := faults.New(faults.CategoryInternal, faults.SeverityHigh,
		"tool iteration limit reached without a final answer")
	return c.failTurn(ctx, rec, requestID)
}

func (c *Client) converse(ctx context.Context, specs []model.ToolSpec) (*model.Response, error) {
	ctx, span := c.tracer.TraceModelCall(ctx, string(c.descriptor.Mode), c.handle.ID())
	defer span.End()

	start := time.Now()
	resp, err := c.handle.Converse(ctx, &model.Request{
		System:    c.systemPrompt,
		Messages:  c.history,
		Tools:     specs,
		MaxTokens: 4096,
	})
	status := "success"
	if err != nil {
		status = "failure"
		c.tracer.RecordError(span, err)
	}
	c.metrics.RecordModelRequest(string(c.descriptor.Mode), status, time.Since(start).Seconds())
	return resp, err
}

func (c *Client) runTool(ctx context.Context, call model.ToolCall) model.ToolResult {
	ctx = observability.AddTool(ctx, call.Name)
	ctx, span := c.tracer.TraceToolExecution(ctx, call.Name)
	defer span.End()

	var args map[string]any
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			rec := faults.New(faults.CategoryValidation, faults.SeverityMedium,
				"tool arguments are not a JSON object").WithTool(call.Name)
			return model.ToolResult{ToolCallID: call.ID, Content: protocol.Direct(rec).Message, IsError: true}
		}
	}

	payload, fault := c.manager.Invoke(ctx, c.descriptor.Mode, call.Name, args)
	if fault != nil {
		c.tracer.RecordError(span, fault)
		c.logger.Warn(ctx, "tool invocation failed",
			"tool", call.Name, "category", string(fault.Category), "fault_id", fault.ID)
		return model.ToolResult{ToolCallID: call.ID, Content: protocol.Direct(fault).Message, IsError: true}
	}
	return model.ToolResult{ToolCallID: call.ID, Content: toolResultText(payload)}
}

// failTurn converts any turn-level error into a rendered reply. The raw
// fault stays in the logs; the user sees the generic category message.
func (c *Client) failTurn(ctx context.Context, err error, requestID string) string {
	rec := faults.Classify(err).WithRequest(requestID, observability.GetSessionID(ctx))
	c.logger.Error(ctx, "conversation turn failed",
		"category", string(rec.Category),
		"severity", string(rec.Severity),
		"fault_id", rec.ID)
	rendered := protocol.Direct(rec)
	return fmt.Sprintf("%s (reference %s)", rendered.Message, rendered.ID)
}

func toolResultText(payload any) string {
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}

// Reset discards the conversation history.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// DeploymentInfo is the descriptive report of the running deployment.
type DeploymentInfo struct {
	Mode           string   `json:"mode"`
	ModelID        string   `json:"model_id,omitempty"`
	AgentID        string   `json:"agent_id,omitempty"`
	AliasID        string   `json:"agent_alias_id,omitempty"`
	Region         string   `json:"region"`
	TracingEnabled bool     `json:"tracing_enabled"`
	Tools          []string `json:"tools"`
}

// DeploymentInfo reports the resolved deployment without touching the
// network.
func (c *Client) DeploymentInfo() DeploymentInfo {
	info := DeploymentInfo{
		Mode:           string(c.descriptor.Mode),
		Region:         c.descriptor.Region,
		TracingEnabled: c.descriptor.TracingEnabled,
	}
	if c.descriptor.Model.Direct != nil {
		info.ModelID = c.descriptor.Model.Direct.ModelID
	}
	if c.descriptor.Model.Agent != nil {
		info.AgentID = c.descriptor.Model.Agent.AgentID
		info.AliasID = c.descriptor.Model.Agent.AliasID
	}
	for _, t := range c.manager.ForMode(c.descriptor.Mode) {
		info.Tools = append(info.Tools, t.Name())
	}
	return info
}

// HealthStatus is the health report: structural checks plus the model
// connectivity probe.
type HealthStatus struct {
	Healthy      bool                `json:"healthy"`
	Mode         string              `json:"mode"`
	ModelError   string              `json:"model_error,omitempty"`
	ProbeError   string              `json:"probe_error,omitempty"`
	ToolWarnings map[string][]string `json:"tool_warnings,omitempty"`
}

// HealthCheck validates the model selector, pings the model handle, and
// collects per-tool warnings. The ping verifies credentials and reachability
// without running inference.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Mode: string(c.descriptor.Mode)}
	if err := model.Validate(c.descriptor); err != nil {
		status.Healthy = false
		status.ModelError = err.Error()
	} else if err := c.handle.Ping(ctx); err != nil {
		rec := faults.Classify(err)
		status.Healthy = false
		status.ProbeError = faults.UserMessage(rec.Category)
		c.logger.Warn(ctx, "model connectivity probe failed",
			"category", string(rec.Category), "fault_id", rec.ID)
	}
	if warnings := c.manager.Warnings(c.descriptor.Mode); len(warnings) > 0 {
		status.ToolWarnings = warnings
	}
	return status
}

// Descriptor exposes the resolved deployment descriptor.
func (c *Client) Descriptor() *config.Descriptor {
	return c.descriptor
}

// Close releases the MCP subprocess and flushes telemetry.
func (c *Client) Close(ctx context.Context) error {
	var firstErr error
	if c.mcpClient != nil {
		if err := c.mcpClient.Close(); err != nil {
			firstErr = err
		}
	}
	if c.shutdownOTel != nil {
		if err := c.shutdownOTel(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
