package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/fallback"
	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/observability"
	"github.com/haasonsaas/placefinder/internal/protocol"
	"github.com/haasonsaas/placefinder/internal/tools"
	"github.com/haasonsaas/placefinder/internal/tools/weather"
)

// Bedrock agent action group event shapes (messageVersion 1.0, function
// details style).

type agentRequest struct {
	MessageVersion string      `json:"messageVersion"`
	SessionID      string      `json:"sessionId"`
	InputText      string      `json:"inputText"`
	ActionGroup    string      `json:"actionGroup"`
	Function       string      `json:"function"`
	Parameters     []parameter `json:"parameters"`
}

type parameter struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

type agentResponse struct {
	MessageVersion string       `json:"messageVersion"`
	Response       responseBody `json:"response"`
}

type responseBody struct {
	ActionGroup      string           `json:"actionGroup"`
	Function         string           `json:"function"`
	FunctionResponse functionResponse `json:"functionResponse"`
}

type functionResponse struct {
	ResponseState string                 `json:"responseState,omitempty"` // FAILURE | REPROMPT
	ResponseBody  map[string]contentBody `json:"responseBody"`
}

type contentBody struct {
	Body string `json:"body"`
}

// handler owns the per-container state: the tool manager and its fallback
// registry survive across invocations so breaker state and cached responses
// carry over.
type handler struct {
	manager *tools.Manager
	logger  *observability.Logger
}

var (
	initOnce sync.Once
	shared   *handler
	initErr  error
)

// containerHandler builds the handler once per container.
func containerHandler(ctx context.Context) (*handler, error) {
	initOnce.Do(func() {
		shared, initErr = newHandler(ctx)
	})
	return shared, initErr
}

func newHandler(ctx context.Context) (*handler, error) {
	descriptor, err := config.Resolve(&config.Overrides{Mode: string(config.ModeAgent)})
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  descriptor.Observability.LogLevel,
		Format: descriptor.Observability.LogFormat,
	})
	metrics := observability.NewMetrics(nil)

	registry := fallback.NewRegistry(descriptor.Fallback)
	executor := fallback.NewExecutor(registry,
		fallback.WithLogger(logger), fallback.WithMetrics(metrics))
	manager := tools.NewManager(executor,
		tools.WithLogger(logger), tools.WithMetrics(metrics))

	nws := weather.NewNWSClient(descriptor.Weather)
	if err := manager.Register(weather.NewForecastTool(nws)); err != nil {
		return nil, err
	}
	if err := manager.Register(weather.NewAlertsTool(nws)); err != nil {
		return nil, err
	}

	logger.Info(ctx, "lambda handler initialized")
	return &handler{manager: manager, logger: logger}, nil
}

// Handle answers one action group invocation. Failures never error the
// Lambda itself: they come back as a FAILURE function response carrying the
// HTTP-rendered fault body.
func (h *handler) Handle(ctx context.Context, req *agentRequest) agentResponse {
	info := invocationInfo(ctx)
	ctx = observability.AddRequestID(ctx, info.RequestID)
	ctx = observability.AddSessionID(ctx, req.SessionID)

	args, rec := coerceParameters(req.Parameters)
	if rec == nil {
		var payload any
		payload, rec = h.manager.Invoke(ctx, config.ModeAgent, req.Function, args)
		if rec == nil {
			return successResponse(req, fmt.Sprintf("%v", payload))
		}
	}

	rec = rec.WithRequest(info.RequestID, req.SessionID)
	h.logger.Warn(ctx, "action group invocation failed",
		"function", req.Function,
		"category", string(rec.Category),
		"fault_id", rec.ID)
	return errorResponse(req, info, rec)
}

// coerceParameters converts the agent's string-typed parameters into the
// argument map the tools expect. Numbers are parsed; everything else passes
// through as strings.
func coerceParameters(params []parameter) (map[string]any, *faults.Record) {
	args := make(map[string]any, len(params))
	for _, p := range params {
		switch p.Type {
		case "number", "integer":
			f, err := strconv.ParseFloat(p.Value, 64)
			if err != nil {
				return nil, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
					"parameter %q is not a number", p.Name)
			}
			args[p.Name] = f
		case "boolean":
			b, err := strconv.ParseBool(p.Value)
			if err != nil {
				return nil, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
					"parameter %q is not a boolean", p.Name)
			}
			args[p.Name] = b
		default:
			args[p.Name] = p.Value
		}
	}
	return args, nil
}

func invocationInfo(ctx context.Context) *protocol.LambdaInfo {
	info := &protocol.LambdaInfo{FunctionName: lambdacontext.FunctionName}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		info.RequestID = lc.AwsRequestID
	}
	return info
}

func successResponse(req *agentRequest, body string) agentResponse {
	return agentResponse{
		MessageVersion: "1.0",
		Response: responseBody{
			ActionGroup: req.ActionGroup,
			Function:    req.Function,
			FunctionResponse: functionResponse{
				ResponseBody: map[string]contentBody{"TEXT": {Body: body}},
			},
		},
	}
}

// errorResponse renders the fault through the HTTP adapter and wraps it in a
// FAILURE function response.
func errorResponse(req *agentRequest, info *protocol.LambdaInfo, err error) agentResponse {
	rendered := protocol.HTTP(faults.Classify(err), info)
	body, marshalErr := json.Marshal(rendered.Error)
	if marshalErr != nil {
		body = []byte(`{"message":"internal error"}`)
	}
	return agentResponse{
		MessageVersion: "1.0",
		Response: responseBody{
			ActionGroup: req.ActionGroup,
			Function:    req.Function,
			FunctionResponse: functionResponse{
				ResponseState: "FAILURE",
				ResponseBody:  map[string]contentBody{"TEXT": {Body: string(body)}},
			},
		},
	}
}
