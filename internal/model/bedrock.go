package model

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/faults"
)

// converseAPI is the slice of the Bedrock runtime client this handle uses.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// bedrockHandle runs direct inference through the Bedrock Converse API.
// Safe for concurrent use.
type bedrockHandle struct {
	client    converseAPI
	modelID   string
	timeout   time.Duration
	guardrail config.GuardrailSettings
	awsCfg    aws.Config
}

func newBedrockHandle(d *config.Descriptor, client converseAPI, awsCfg aws.Config) *bedrockHandle {
	return &bedrockHandle{
		client:    client,
		modelID:   d.Model.Direct.ModelID,
		timeout:   d.Timeout,
		guardrail: d.Guardrail,
		awsCfg:    awsCfg,
	}
}

func (h *bedrockHandle) ID() string {
	return h.modelID
}

func (h *bedrockHandle) Ping(ctx context.Context) error {
	return credentialsPing(ctx, h.awsCfg)
}

// Converse runs one synchronous turn. Guardrail configuration is attached
// when a policy id is set; failures come back classified.
func (h *bedrockHandle) Converse(ctx context.Context, req *Request) (*Response, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(h.modelID),
		Messages: convertMessages(req.Messages),
	}
	if req.System != "" {
		input.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{Value: req.System},
		}
	}
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		input.InferenceConfig = &types.InferenceConfiguration{
			// #nosec G115 -- bounded by min above
			MaxTokens: aws.Int32(int32(maxTokens)),
		}
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = convertTools(req.Tools)
	}
	if h.guardrail.Enabled() {
		input.GuardrailConfig = &types.GuardrailConfiguration{
			GuardrailIdentifier: aws.String(h.guardrail.GuardrailID),
			GuardrailVersion:    aws.String(h.guardrail.Version),
		}
	}

	output, err := h.client.Converse(ctx, input)
	if err != nil {
		return nil, faults.Classify(err)
	}
	return parseConverseOutput(output)
}

func convertMessages(messages []Message) []types.Message {
	result := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		var content []types.ContentBlock
		if msg.Text != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Text})
		}
		for _, tr := range msg.ToolResults {
			status := types.ToolResultStatusSuccess
			if tr.IsError {
				status = types.ToolResultStatusError
			}
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Status:    status,
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: tr.Content},
					},
				},
			})
		}
		for _, tc := range msg.ToolCalls {
			var inputDoc any
			if err := json.Unmarshal(tc.Input, &inputDoc); err != nil {
				inputDoc = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

		role := types.ConversationRoleUser
		if msg.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		if len(content) > 0 {
			result = append(result, types.Message{Role: role, Content: content})
		}
	}
	return result
}

func convertTools(specs []ToolSpec) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(spec.Name),
				Description: aws.String(spec.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(spec.Schema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: tools}
}

func parseConverseOutput(output *bedrockruntime.ConverseOutput) (*Response, error) {
	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return nil, faults.New(faults.CategoryProtocol, faults.SeverityHigh,
			"unexpected converse output shape")
	}

	resp := &Response{StopReason: string(output.StopReason)}
	for _, block := range msg.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			resp.Text += b.Value
		case *types.ContentBlockMemberToolUse:
			input := json.RawMessage(`{}`)
			if b.Value.Input != nil {
				if raw, err := b.Value.Input.MarshalSmithyDocument(); err == nil {
					input = raw
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:    aws.ToString(b.Value.ToolUseId),
				Name:  aws.ToString(b.Value.Name),
				Input: input,
			})
		}
	}
	return resp, nil
}
