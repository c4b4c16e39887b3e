package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/haasonsaas/placefinder/internal/client"
	"github.com/haasonsaas/placefinder/internal/mcp"
	"github.com/haasonsaas/placefinder/internal/observability"
	"github.com/haasonsaas/placefinder/internal/protocol"
)

type fakeEngine struct {
	lastQuestion string
	reply        string
}

func (f *fakeEngine) Chat(ctx context.Context, message string) string {
	f.lastQuestion = message
	return f.reply
}

func (f *fakeEngine) DeploymentInfo() client.DeploymentInfo {
	return client.DeploymentInfo{Mode: "mcp", ModelID: "fake-model", Region: "us-east-1"}
}

func (f *fakeEngine) HealthCheck(ctx context.Context) client.HealthStatus {
	return client.HealthStatus{Healthy: true, Mode: "mcp"}
}

// runServer feeds the requests through a server and decodes one response per
// request line.
func runServer(t *testing.T, eng engine, requests ...string) []mcp.JSONRPCResponse {
	t.Helper()
	in := strings.NewReader(strings.Join(requests, "\n") + "\n")
	var out bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Output: io.Discard})
	srv := New(eng, logger, nil, in, &out)

	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var responses []mcp.JSONRPCResponse
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var resp mcp.JSONRPCResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("unmarshal response %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestInitializeAdvertisesTools(t *testing.T) {
	responses := runServer(t, &fakeEngine{},
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if len(responses) != 1 {
		t.Fatalf("responses = %d", len(responses))
	}

	var result mcp.InitializeResult
	if err := json.Unmarshal(responses[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.ProtocolVersion != mcp.ProtocolVersion {
		t.Errorf("protocol version = %q", result.ProtocolVersion)
	}
	if result.Capabilities.Tools == nil {
		t.Errorf("tools capability missing")
	}
	if result.ServerInfo.Name != "placefinder" {
		t.Errorf("server info = %+v", result.ServerInfo)
	}
}

func TestToolsListExposesAskTool(t *testing.T) {
	responses := runServer(t, &fakeEngine{},
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	var result mcp.ListToolsResult
	if err := json.Unmarshal(responses[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"ask_location_weather", "get_deployment_info", "check_health"} {
		if !names[want] {
			t.Errorf("tools/list missing %q", want)
		}
	}
}

func TestAskLocationWeather(t *testing.T) {
	eng := &fakeEngine{reply: "Pike Place Market is in downtown Seattle."}
	responses := runServer(t, eng,
		`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"ask_location_weather","arguments":{"question":"Where is Pike Place Market?"}}}`)

	if eng.lastQuestion != "Where is Pike Place Market?" {
		t.Errorf("question = %q", eng.lastQuestion)
	}
	var result mcp.ToolCallResult
	if err := json.Unmarshal(responses[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Text() != "Pike Place Market is in downtown Seattle." {
		t.Errorf("text = %q", result.Text())
	}
}

func TestMissingQuestionRendersRPCError(t *testing.T) {
	responses := runServer(t, &fakeEngine{},
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"ask_location_weather","arguments":{}}}`)

	resp := responses[0]
	if resp.Error == nil {
		t.Fatalf("expected error response, got %+v", resp)
	}
	if resp.Error.Code != protocol.CodeInvalidParams {
		t.Errorf("code = %d", resp.Error.Code)
	}

	var data protocol.RPCErrorData
	if err := json.Unmarshal(resp.Error.Data, &data); err != nil {
		t.Fatalf("unmarshal error data: %v", err)
	}
	if string(data.Category) != "validation" {
		t.Errorf("category = %s", data.Category)
	}
	if data.Retryable {
		t.Errorf("validation should not be retryable")
	}
	if data.ID == "" {
		t.Errorf("error data missing fault id")
	}
}

func TestUnknownMethodRendersRPCError(t *testing.T) {
	responses := runServer(t, &fakeEngine{},
		`{"jsonrpc":"2.0","id":3,"method":"resources/list"}`)

	resp := responses[0]
	if resp.Error == nil || resp.Error.Code != protocol.CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp)
	}
}

func TestNotificationsGetNoResponse(t *testing.T) {
	responses := runServer(t, &fakeEngine{reply: "ok"},
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`)

	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1 (notification must be silent)", len(responses))
	}
}

func TestDeploymentInfoTool(t *testing.T) {
	responses := runServer(t, &fakeEngine{},
		`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"get_deployment_info","arguments":{}}}`)

	var result mcp.ToolCallResult
	if err := json.Unmarshal(responses[0].Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	var info client.DeploymentInfo
	if err := json.Unmarshal([]byte(result.Text()), &info); err != nil {
		t.Fatalf("unmarshal info: %v", err)
	}
	if info.Mode != "mcp" || info.ModelID != "fake-model" {
		t.Errorf("info = %+v", info)
	}
}
