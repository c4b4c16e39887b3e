package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/fallback"
	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/model"
	"github.com/haasonsaas/placefinder/internal/observability"
)

// registration pairs a tool with the modes it serves.
type registration struct {
	tool  Tool
	modes map[config.Mode]bool // nil means all modes
}

func (r registration) servesMode(mode config.Mode) bool {
	return r.modes == nil || r.modes[mode]
}

// Manager owns the registered tool set and runs every invocation through the
// fallback executor. Registration happens once during client construction;
// after that the manager is read-only and safe for concurrent use.
type Manager struct {
	registrations map[string]registration
	order         []string
	alternates    map[string]string

	executor *fallback.Executor
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger attaches a logger for registration warnings and invocations.
func WithLogger(logger *observability.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics attaches invocation metrics.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// NewManager creates a manager over the given executor.
func NewManager(executor *fallback.Executor, opts ...ManagerOption) *Manager {
	m := &Manager{
		registrations: make(map[string]registration),
		alternates:    make(map[string]string),
		executor:      executor,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a tool for the given modes; no modes means every mode.
// Validation problems are logged as warnings, never rejected. Duplicate names
// are an error since the model addresses tools by name.
func (m *Manager) Register(t Tool, modes ...config.Mode) error {
	if _, exists := m.registrations[t.Name()]; exists {
		return faults.Newf(faults.CategoryConfiguration, faults.SeverityHigh,
			"duplicate tool registration %q", t.Name())
	}

	for _, warning := range Validate(t) {
		if m.logger != nil {
			m.logger.Warn(context.Background(), "tool registration warning",
				"tool", t.Name(), "warning", warning)
		}
	}

	reg := registration{tool: t}
	if len(modes) > 0 {
		reg.modes = make(map[config.Mode]bool, len(modes))
		for _, mode := range modes {
			reg.modes[mode] = true
		}
	}
	m.registrations[t.Name()] = reg
	m.order = append(m.order, t.Name())
	return nil
}

// SetAlternate wires a substitute tool tried when the primary is exhausted.
// Both tools must already be registered.
func (m *Manager) SetAlternate(primary, alternate string) error {
	if _, ok := m.registrations[primary]; !ok {
		return fmt.Errorf("unknown primary tool %q", primary)
	}
	if _, ok := m.registrations[alternate]; !ok {
		return fmt.Errorf("unknown alternate tool %q", alternate)
	}
	m.alternates[primary] = alternate
	return nil
}

// ForMode returns the tools serving the given deployment mode, in
// registration order. Agent mode deployments register location capability
// remotely, so mode-scoped tools simply never show up there.
func (m *Manager) ForMode(mode config.Mode) []Tool {
	var out []Tool
	for _, name := range m.order {
		if reg := m.registrations[name]; reg.servesMode(mode) {
			out = append(out, reg.tool)
		}
	}
	return out
}

// Specs renders the mode's tool set as model tool specifications.
func (m *Manager) Specs(mode config.Mode) []model.ToolSpec {
	selected := m.ForMode(mode)
	specs := make([]model.ToolSpec, 0, len(selected))
	for _, t := range selected {
		specs = append(specs, model.ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return specs
}

// Get looks up a registered tool by name.
func (m *Manager) Get(name string) (Tool, bool) {
	reg, ok := m.registrations[name]
	if !ok {
		return nil, false
	}
	return reg.tool, true
}

// Warnings returns validation warnings for every tool serving the mode,
// keyed by tool name. Used by health checks.
func (m *Manager) Warnings(mode config.Mode) map[string][]string {
	out := make(map[string][]string)
	for _, t := range m.ForMode(mode) {
		if w := Validate(t); len(w) > 0 {
			out[t.Name()] = w
		}
	}
	return out
}

// Invoke runs a tool through the fallback executor. Unknown tools and
// failures come back as fault records tagged with the tool name; the caller
// renders them through its transport's adapter.
func (m *Manager) Invoke(ctx context.Context, mode config.Mode, name string, args map[string]any) (any, *faults.Record) {
	reg, ok := m.registrations[name]
	if !ok || !reg.servesMode(mode) {
		return nil, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
			"unknown tool %q", name).WithTool(name)
	}

	policy := fallback.Policy{
		Tool:     name,
		CacheKey: cacheKey(name, args),
	}
	if altName, ok := m.alternates[name]; ok {
		if alt, found := m.registrations[altName]; found {
			policy.Alternate = func(ctx context.Context) (any, error) {
				return alt.tool.Execute(ctx, args)
			}
			policy.AlternateTool = altName
		}
	}

	start := time.Now()
	result := m.executor.Execute(ctx, func(ctx context.Context) (any, error) {
		return reg.tool.Execute(ctx, args)
	}, policy)

	if m.metrics != nil {
		status := "success"
		if !result.Succeeded {
			status = "failure"
		}
		m.metrics.RecordToolInvocation(name, status, time.Since(start).Seconds())
	}
	if !result.Succeeded {
		return nil, result.Fault
	}
	if m.logger != nil && result.Strategy != fallback.StrategyNone {
		m.logger.Info(ctx, "tool answered through fallback",
			"tool", name, "strategy", string(result.Strategy), "attempts", result.Attempts)
	}
	return result.Payload, nil
}

// cacheKey derives a stable key from the tool name and arguments. Map keys
// marshal in sorted order, so equal argument sets produce equal keys.
func cacheKey(name string, args map[string]any) string {
	if len(args) == 0 {
		return name
	}
	data, err := json.Marshal(args)
	if err != nil {
		keys := make([]string, 0, len(args))
		for k := range args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%s:%v", name, keys)
	}
	return name + ":" + string(data)
}
