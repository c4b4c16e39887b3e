package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/fallback"
	"github.com/haasonsaas/placefinder/internal/faults"
)

type stubTool struct {
	name        string
	description string
	schema      map[string]any
	execute     func(ctx context.Context, args map[string]any) (any, error)
	calls       int
}

func (s *stubTool) Name() string { return s.name }
func (s *stubTool) Description() string { return s.description }
func (s *stubTool) Schema() map[string]any { return s.schema }
func (s *stubTool) ReturnSchema() map[string]any { return nil }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	s.calls++
	if s.execute != nil {
		return s.execute(ctx, args)
	}
	return "ok", nil
}

func okTool(name string) *stubTool {
	return &stubTool{
		name:        name,
		description: name + " tool",
		schema:      map[string]any{"type": "object"},
	}
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	registry := fallback.NewRegistry(config.FallbackSettings{
		MaxAttempts:      2,
		BaseDelay:        time.Millisecond,
		Multiplier:       2.0,
		MaxDelay:         10 * time.Millisecond,
		BreakerThreshold: 100,
		RecoveryTimeout:  time.Minute,
		CacheTTL:         time.Minute,
		StaleTTL:         5 * time.Minute,
	})
	executor := fallback.NewExecutor(registry,
		fallback.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	return NewManager(executor)
}

type forecastParams struct {
	Latitude  float64 `json:"latitude" jsonschema:"description=Latitude in decimal degrees"`
	Longitude float64 `json:"longitude" jsonschema:"description=Longitude in decimal degrees"`
}

func TestSchemaForReflectsParameterStruct(t *testing.T) {
	schema := SchemaFor(&forecastParams{})
	if schema["type"] != "object" {
		t.Fatalf("schema type = %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %v", schema)
	}
	for _, field := range []string{"latitude", "longitude"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
	}
	if _, ok := schema["$schema"]; ok {
		t.Errorf("reflected schema should not carry $schema")
	}
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name     string
		tool     Tool
		wantWarn int
	}{
		{"complete tool", okTool("get_weather"), 0},
		{"missing description", &stubTool{name: "t", schema: map[string]any{"type": "object"}}, 1},
		{"missing schema", &stubTool{name: "t", description: "d"}, 1},
		{"invalid schema", &stubTool{name: "t", description: "d",
			schema: map[string]any{"type": 12345}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := Validate(tt.tool)
			if len(warnings) != tt.wantWarn {
				t.Errorf("warnings = %v, want %d", warnings, tt.wantWarn)
			}
		})
	}
}

func TestManagerForModeScoping(t *testing.T) {
	m := testManager(t)
	if err := m.Register(okTool("get_weather")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(okTool("search_places"), config.ModeLocal, config.ModeMCP); err != nil {
		t.Fatalf("Register: %v", err)
	}

	local := m.ForMode(config.ModeLocal)
	if len(local) != 2 {
		t.Errorf("local tools = %d, want 2", len(local))
	}
	agent := m.ForMode(config.ModeAgent)
	if len(agent) != 1 || agent[0].Name() != "get_weather" {
		t.Errorf("agent tools = %v", agent)
	}

	specs := m.Specs(config.ModeLocal)
	if len(specs) != 2 || specs[0].Name != "get_weather" {
		t.Errorf("specs = %+v", specs)
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	m := testManager(t)
	if err := m.Register(okTool("get_weather")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(okTool("get_weather")); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestManagerInvokeSuccess(t *testing.T) {
	m := testManager(t)
	tool := okTool("get_weather")
	tool.execute = func(ctx context.Context, args map[string]any) (any, error) {
		return "sunny", nil
	}
	if err := m.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}

	payload, fault := m.Invoke(context.Background(), config.ModeLocal, "get_weather",
		map[string]any{"latitude": 47.6})
	if fault != nil {
		t.Fatalf("Invoke fault: %v", fault)
	}
	if payload != "sunny" {
		t.Errorf("payload = %v", payload)
	}
}

func TestManagerInvokeUnknownTool(t *testing.T) {
	m := testManager(t)
	_, fault := m.Invoke(context.Background(), config.ModeLocal, "no_such_tool", nil)
	if fault == nil {
		t.Fatal("expected fault for unknown tool")
	}
	if fault.Category != faults.CategoryValidation {
		t.Errorf("category = %s", fault.Category)
	}
	if fault.Context.ToolName != "no_such_tool" {
		t.Errorf("tool tag = %q", fault.Context.ToolName)
	}
}

func TestManagerInvokeModeScoped(t *testing.T) {
	m := testManager(t)
	if err := m.Register(okTool("search_places"), config.ModeLocal); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, fault := m.Invoke(context.Background(), config.ModeAgent, "search_places", nil)
	if fault == nil || fault.Category != faults.CategoryValidation {
		t.Fatalf("expected validation fault, got %v", fault)
	}
}

func TestManagerInvokeTagsFailures(t *testing.T) {
	m := testManager(t)
	tool := okTool("get_weather")
	tool.execute = func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("invalid latitude")
	}
	if err := m.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, fault := m.Invoke(context.Background(), config.ModeLocal, "get_weather", nil)
	if fault == nil {
		t.Fatal("expected fault")
	}
	if fault.Context.ToolName != "get_weather" {
		t.Errorf("tool tag = %q", fault.Context.ToolName)
	}
	if tool.calls != 1 {
		t.Errorf("non-retryable failure ran %d times", tool.calls)
	}
}

func TestManagerInvokeAlternate(t *testing.T) {
	m := testManager(t)
	primary := okTool("search_places")
	primary.execute = func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("boom")
	}
	alternate := okTool("search_nearby")
	alternate.execute = func(ctx context.Context, args map[string]any) (any, error) {
		return "nearby result", nil
	}
	if err := m.Register(primary); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.Register(alternate); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := m.SetAlternate("search_places", "search_nearby"); err != nil {
		t.Fatalf("SetAlternate: %v", err)
	}

	payload, fault := m.Invoke(context.Background(), config.ModeLocal, "search_places", nil)
	if fault != nil {
		t.Fatalf("Invoke fault: %v", fault)
	}
	if payload != "nearby result" {
		t.Errorf("payload = %v", payload)
	}
	if alternate.calls != 1 {
		t.Errorf("alternate calls = %d", alternate.calls)
	}
}

func TestCacheKeyStability(t *testing.T) {
	a := cacheKey("get_weather", map[string]any{"latitude": 47.6, "longitude": -122.3})
	b := cacheKey("get_weather", map[string]any{"longitude": -122.3, "latitude": 47.6})
	if a != b {
		t.Errorf("equivalent args produced different keys: %q vs %q", a, b)
	}
	c := cacheKey("get_weather", map[string]any{"latitude": 40.7, "longitude": -122.3})
	if a == c {
		t.Errorf("different args produced the same key")
	}
	if cacheKey("get_alerts", nil) != "get_alerts" {
		t.Errorf("empty args should key on the tool name alone")
	}
}
