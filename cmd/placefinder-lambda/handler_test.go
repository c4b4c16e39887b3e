package main

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/fallback"
	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/observability"
	"github.com/haasonsaas/placefinder/internal/protocol"
	"github.com/haasonsaas/placefinder/internal/tools"
)

type stubTool struct {
	name    string
	execute func(ctx context.Context, args map[string]any) (any, error)
}

func (s *stubTool) Name() string { return s.name }
func (s *stubTool) Description() string { return s.name }
func (s *stubTool) Schema() map[string]any { return map[string]any{"type": "object"} }
func (s *stubTool) ReturnSchema() map[string]any { return nil }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	return s.execute(ctx, args)
}

func testHandler(t *testing.T, stubs ...tools.Tool) *handler {
	t.Helper()
	registry := fallback.NewRegistry(config.FallbackSettings{
		MaxAttempts:      1,
		BaseDelay:        time.Millisecond,
		Multiplier:       2.0,
		MaxDelay:         10 * time.Millisecond,
		BreakerThreshold: 100,
		RecoveryTimeout:  time.Minute,
		CacheTTL:         time.Minute,
		StaleTTL:         5 * time.Minute,
	})
	manager := tools.NewManager(fallback.NewExecutor(registry))
	for _, s := range stubs {
		if err := manager.Register(s); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return &handler{
		manager: manager,
		logger:  observability.NewLogger(observability.LogConfig{Output: io.Discard}),
	}
}

func weatherRequest(function string) *agentRequest {
	return &agentRequest{
		MessageVersion: "1.0",
		SessionID:      "sess-1",
		ActionGroup:    "weather",
		Function:       function,
		Parameters: []parameter{
			{Name: "latitude", Type: "number", Value: "47.6062"},
			{Name: "longitude", Type: "number", Value: "-122.3321"},
		},
	}
}

func TestHandleWeatherSuccess(t *testing.T) {
	var gotArgs map[string]any
	h := testHandler(t, &stubTool{name: "get_weather",
		execute: func(ctx context.Context, args map[string]any) (any, error) {
			gotArgs = args
			return "55F, rain likely", nil
		}})

	resp := h.Handle(context.Background(), weatherRequest("get_weather"))
	if resp.MessageVersion != "1.0" {
		t.Errorf("message version = %q", resp.MessageVersion)
	}
	if resp.Response.ActionGroup != "weather" || resp.Response.Function != "get_weather" {
		t.Errorf("response header = %+v", resp.Response)
	}
	if resp.Response.FunctionResponse.ResponseState != "" {
		t.Errorf("unexpected response state %q", resp.Response.FunctionResponse.ResponseState)
	}
	if body := resp.Response.FunctionResponse.ResponseBody["TEXT"].Body; body != "55F, rain likely" {
		t.Errorf("body = %q", body)
	}
	if gotArgs["latitude"] != 47.6062 {
		t.Errorf("coerced args = %v", gotArgs)
	}
}

func TestHandleUnknownFunction(t *testing.T) {
	h := testHandler(t)
	resp := h.Handle(context.Background(), weatherRequest("get_tides"))

	fr := resp.Response.FunctionResponse
	if fr.ResponseState != "FAILURE" {
		t.Fatalf("response state = %q", fr.ResponseState)
	}
	var body protocol.HTTPBody
	if err := json.Unmarshal([]byte(fr.ResponseBody["TEXT"].Body), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.Category != faults.CategoryValidation {
		t.Errorf("category = %s", body.Category)
	}
	if body.Message == "" || strings.Contains(body.Message, "get_tides") {
		t.Errorf("message should be generic, got %q", body.Message)
	}
}

func TestHandleBadParameter(t *testing.T) {
	h := testHandler(t, &stubTool{name: "get_weather",
		execute: func(ctx context.Context, args map[string]any) (any, error) {
			t.Fatal("tool must not run with bad parameters")
			return nil, nil
		}})

	req := weatherRequest("get_weather")
	req.Parameters[0].Value = "north"
	resp := h.Handle(context.Background(), req)

	fr := resp.Response.FunctionResponse
	if fr.ResponseState != "FAILURE" {
		t.Fatalf("response state = %q", fr.ResponseState)
	}
}

func TestHandleCarriesInvocationMetadata(t *testing.T) {
	h := testHandler(t, &stubTool{name: "get_alerts",
		execute: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, faults.New(faults.CategoryServiceUnavailable, faults.SeverityHigh,
				"weather api down")
		}})

	ctx := lambdacontext.NewContext(context.Background(),
		&lambdacontext.LambdaContext{AwsRequestID: "req-123"})
	resp := h.Handle(ctx, weatherRequest("get_alerts"))

	var body protocol.HTTPBody
	if err := json.Unmarshal([]byte(resp.Response.FunctionResponse.ResponseBody["TEXT"].Body), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body.RequestID != "req-123" {
		t.Errorf("request id = %q", body.RequestID)
	}
	if body.Category != faults.CategoryServiceUnavailable || !body.Retryable {
		t.Errorf("body = %+v", body)
	}
}
