// Package model creates the inference handle matching the deployment
// descriptor: direct Bedrock Converse for local/mcp modes, remote agent
// invocation for agent mode.
package model

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/faults"
)

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// ToolResult carries a tool outcome back to the model.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// Message is one conversation turn.
type Message struct {
	Role        string // "user" | "assistant"
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Request is one synchronous model invocation.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolSpec
	MaxTokens int
}

// Response is the model's reply. A non-empty ToolCalls slice means the model
// wants tool results before producing its final answer.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Handle is the mode-specific inference implementation.
type Handle interface {
	// ID identifies the underlying model or agent.
	ID() string

	// Converse runs one synchronous inference turn.
	Converse(ctx context.Context, req *Request) (*Response, error)

	// Ping probes connectivity and credentials without running inference.
	Ping(ctx context.Context) error
}

// Validate checks the descriptor's model selector structurally, without
// touching the network. Resolution already guarantees exclusivity; this
// guards against hand-built descriptors.
func Validate(d *config.Descriptor) error {
	switch d.Mode {
	case config.ModeAgent:
		if d.Model.Agent == nil || d.Model.Agent.AgentID == "" {
			return faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
				"agent mode requires an agent selector")
		}
		if d.Model.Direct != nil {
			return faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
				"agent mode must not carry a direct model selector")
		}
	case config.ModeLocal, config.ModeMCP:
		if d.Model.Direct == nil || d.Model.Direct.ModelID == "" {
			return faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
				"%s mode requires a model id", d.Mode)
		}
		if d.Model.Agent != nil {
			return faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
				"%s mode must not carry an agent selector", d.Mode)
		}
	default:
		return faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
			"unknown deployment mode %q", d.Mode)
	}
	return nil
}

// New builds the handle for the descriptor's mode. AWS credentials come from
// the default chain (environment, shared config, IAM role).
func New(ctx context.Context, d *config.Descriptor) (Handle, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(d.Region))
	if err != nil {
		return nil, faults.New(faults.CategoryConfiguration, faults.SeverityHigh,
			"failed to load AWS configuration").WithCause(err)
	}

	if d.Mode == config.ModeAgent {
		client := bedrockagentruntime.NewFromConfig(awsCfg)
		return newAgentHandle(d, client, awsCfg), nil
	}

	client := bedrockruntime.NewFromConfig(awsCfg)
	return newBedrockHandle(d, client, awsCfg), nil
}

// credentialsPing verifies that the credential chain can produce credentials.
// Shared by both handles as the cost-free connectivity probe.
func credentialsPing(ctx context.Context, cfg aws.Config) error {
	if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
		return faults.New(faults.CategoryServiceUnavailable, faults.SeverityHigh,
			"AWS credentials are unavailable").WithCause(err)
	}
	return nil
}
