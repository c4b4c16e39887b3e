// Package mcpserver exposes the conversational engine as an MCP stdio
// server. Responses go to stdout as line-delimited JSON-RPC; every failure
// is rendered through the RPC adapter and nothing else.
package mcpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/haasonsaas/placefinder/internal/client"
	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/mcp"
	"github.com/haasonsaas/placefinder/internal/observability"
	"github.com/haasonsaas/placefinder/internal/protocol"
)

const serverVersion = "1.0.0"

// engine is the slice of the client the server needs.
type engine interface {
	Chat(ctx context.Context, message string) string
	DeploymentInfo() client.DeploymentInfo
	HealthCheck(ctx context.Context) client.HealthStatus
}

// Server answers MCP requests over a reader/writer pair, normally the
// process's stdin and stdout.
type Server struct {
	engine engine
	logger *observability.Logger
	tracer *observability.Tracer

	in    io.Reader
	out   io.Writer
	outMu sync.Mutex
}

// New creates a server over the conversational engine.
func New(eng engine, logger *observability.Logger, tracer *observability.Tracer, in io.Reader, out io.Writer) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	if tracer == nil {
		tracer, _ = observability.NewTracer(observability.TraceConfig{})
	}
	return &Server{
		engine: eng,
		logger: logger,
		tracer: tracer,
		in:     in,
		out:    out,
	}
}

// Run reads requests until the input closes or the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	s.logger.Info(ctx, "mcp server listening on stdio")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.handleLine(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdin scanner: %w", err)
	}
	return nil
}

func (s *Server) handleLine(ctx context.Context, line string) {
	var req mcp.JSONRPCRequest
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.writeError(nil, faults.New(faults.CategoryProtocol, faults.SeverityMedium,
			"request is not valid JSON-RPC"))
		return
	}

	// Notifications carry no id and get no response.
	if req.ID == nil {
		s.logger.Debug(ctx, "notification received", "method", req.Method)
		return
	}

	ctx, span := s.tracer.TraceRPCRequest(ctx, req.Method)
	defer span.End()

	result, rec := s.dispatch(ctx, &req)
	if rec != nil {
		s.tracer.RecordError(span, rec)
		s.writeError(req.ID, rec)
		return
	}
	s.writeResult(req.ID, result)
}

func (s *Server) dispatch(ctx context.Context, req *mcp.JSONRPCRequest) (any, *faults.Record) {
	switch req.Method {
	case "initialize":
		return mcp.InitializeResult{
			ProtocolVersion: mcp.ProtocolVersion,
			Capabilities:    mcp.Capabilities{Tools: &mcp.ToolsCapability{}},
			ServerInfo:      mcp.ServerInfo{Name: "placefinder", Version: serverVersion},
		}, nil
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return mcp.ListToolsResult{Tools: serverTools()}, nil
	case "tools/call":
		return s.callTool(ctx, req.Params)
	default:
		return nil, faults.Newf(faults.CategoryConfiguration, faults.SeverityMedium,
			"unknown method %q", req.Method)
	}
}

// serverTools lists the three tools this server exposes.
func serverTools() []*mcp.Tool {
	questionSchema := json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {
				"type": "string",
				"description": "A natural-language question about locations, routes, places, or weather"
			}
		},
		"required": ["question"]
	}`)
	emptySchema := json.RawMessage(`{"type":"object"}`)

	return []*mcp.Tool{
		{
			Name:        "ask_location_weather",
			Description: "Answer a natural-language question about locations, places, routes, or weather conditions.",
			InputSchema: questionSchema,
		},
		{
			Name:        "get_deployment_info",
			Description: "Describe the running deployment: mode, model, region, and registered tools.",
			InputSchema: emptySchema,
		},
		{
			Name:        "check_health",
			Description: "Report deployment health: configuration checks plus a model connectivity probe.",
			InputSchema: emptySchema,
		},
	}
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *faults.Record) {
	var call mcp.CallToolParams
	if err := json.Unmarshal(params, &call); err != nil {
		return nil, faults.New(faults.CategoryValidation, faults.SeverityMedium,
			"tools/call params are malformed").WithCause(err)
	}

	switch call.Name {
	case "ask_location_weather":
		var args struct {
			Question string `json:"question"`
		}
		if len(call.Arguments) > 0 {
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return nil, faults.New(faults.CategoryValidation, faults.SeverityMedium,
					"arguments are not a JSON object").WithTool(call.Name)
			}
		}
		if args.Question == "" {
			return nil, faults.New(faults.CategoryValidation, faults.SeverityMedium,
				"question is required").WithTool(call.Name)
		}
		reply := s.engine.Chat(ctx, args.Question)
		return textResult(reply), nil

	case "get_deployment_info":
		data, err := json.Marshal(s.engine.DeploymentInfo())
		if err != nil {
			return nil, faults.New(faults.CategoryInternal, faults.SeverityHigh,
				"failed to encode deployment info").WithCause(err)
		}
		return textResult(string(data)), nil

	case "check_health":
		data, err := json.Marshal(s.engine.HealthCheck(ctx))
		if err != nil {
			return nil, faults.New(faults.CategoryInternal, faults.SeverityHigh,
				"failed to encode health status").WithCause(err)
		}
		return textResult(string(data)), nil

	default:
		return nil, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
			"unknown tool %q", call.Name).WithTool(call.Name)
	}
}

func textResult(text string) mcp.ToolCallResult {
	return mcp.ToolCallResult{
		Content: []mcp.ToolResultContent{{Type: "text", Text: text}},
	}
}

func (s *Server) writeResult(id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		s.writeError(id, faults.New(faults.CategoryInternal, faults.SeverityHigh,
			"failed to encode result").WithCause(err))
		return
	}
	s.write(mcp.JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: data})
}

func (s *Server) writeError(id any, rec *faults.Record) {
	rendered := protocol.RPC(rec)
	data, _ := json.Marshal(rendered.Data)
	s.write(mcp.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &mcp.JSONRPCError{
			Code:    rendered.Code,
			Message: rendered.Message,
			Data:    data,
		},
	})
}

func (s *Server) write(resp mcp.JSONRPCResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error(context.Background(), "failed to encode response", "error", err)
		return
	}
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.out.Write(append(data, '\n'))
}
