package model

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/google/uuid"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/faults"
)

// agentInvoker abstracts InvokeAgent so tests can script completions without
// faking the SDK event stream.
type agentInvoker interface {
	Invoke(ctx context.Context, agentID, aliasID, sessionID, text string) (string, error)
}

// agentHandle delegates the whole conversation to a remote Bedrock agent.
// Tool orchestration happens server-side in the agent's action groups, so
// Converse ignores the request's tool specs and returns plain text.
type agentHandle struct {
	invoker   agentInvoker
	agentID   string
	aliasID   string
	sessionID string
	timeout   time.Duration
	awsCfg    aws.Config
}

func newAgentHandle(d *config.Descriptor, client *bedrockagentruntime.Client, awsCfg aws.Config) *agentHandle {
	return &agentHandle{
		invoker:   &runtimeInvoker{client: client},
		agentID:   d.Model.Agent.AgentID,
		aliasID:   d.Model.Agent.AliasID,
		sessionID: d.Model.Agent.SessionID,
		timeout:   d.Timeout,
		awsCfg:    awsCfg,
	}
}

func (h *agentHandle) ID() string {
	return h.agentID
}

func (h *agentHandle) Ping(ctx context.Context) error {
	return credentialsPing(ctx, h.awsCfg)
}

// Converse sends the latest user turn to the agent. Without a configured
// session id every call gets a fresh session, matching stateless invocation.
func (h *agentHandle) Converse(ctx context.Context, req *Request) (*Response, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	text := latestUserText(req.Messages)
	if text == "" {
		return nil, faults.New(faults.CategoryValidation, faults.SeverityMedium,
			"agent invocation requires a user message")
	}

	sessionID := h.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	completion, err := h.invoker.Invoke(ctx, h.agentID, h.aliasID, sessionID, text)
	if err != nil {
		return nil, faults.Classify(err)
	}
	return &Response{Text: completion, StopReason: "end_turn"}, nil
}

func latestUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && messages[i].Text != "" {
			return messages[i].Text
		}
	}
	return ""
}

// runtimeInvoker is the production invoker over the agent runtime client. It
// drains the completion event stream into a single string.
type runtimeInvoker struct {
	client *bedrockagentruntime.Client
}

func (r *runtimeInvoker) Invoke(ctx context.Context, agentID, aliasID, sessionID, text string) (string, error) {
	output, err := r.client.InvokeAgent(ctx, &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(agentID),
		AgentAliasId: aws.String(aliasID),
		SessionId:    aws.String(sessionID),
		InputText:    aws.String(text),
	})
	if err != nil {
		return "", err
	}

	stream := output.GetStream()
	defer stream.Close()

	var sb strings.Builder
	for event := range stream.Events() {
		if chunk, ok := event.(*types.ResponseStreamMemberChunk); ok {
			sb.Write(chunk.Value.Bytes)
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
