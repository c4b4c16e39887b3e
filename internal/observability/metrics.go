package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the Prometheus instruments for the assistant:
//   - model request latency and outcome
//   - tool invocation counts and latency
//   - fallback strategy activations
//   - errors by taxonomy category
type Metrics struct {
	// ModelRequestDuration measures model call latency in seconds.
	// Labels: mode (local|mcp|agent)
	ModelRequestDuration *prometheus.HistogramVec

	// ModelRequestCounter counts model calls.
	// Labels: mode, status (success|error)
	ModelRequestCounter *prometheus.CounterVec

	// ToolInvocationCounter counts tool executions.
	// Labels: tool_name, status (success|error)
	ToolInvocationCounter *prometheus.CounterVec

	// ToolInvocationDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolInvocationDuration *prometheus.HistogramVec

	// FallbackActivationCounter counts fallback strategy activations.
	// Labels: tool_name, strategy (retry|alternate|cache)
	FallbackActivationCounter *prometheus.CounterVec

	// ErrorCounter tracks errors by taxonomy category.
	// Labels: category, severity
	ErrorCounter *prometheus.CounterVec

	// BreakerStateGauge reports circuit breaker state per tool.
	// Labels: tool_name; value 0=closed, 1=half_open, 2=open
	BreakerStateGauge *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus instruments with reg.
// Pass prometheus.DefaultRegisterer in production; tests use a private
// registry so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ModelRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "placefinder_model_request_duration_seconds",
				Help:    "Duration of model invocations in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),

		ModelRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placefinder_model_requests_total",
				Help: "Total number of model invocations by mode and status",
			},
			[]string{"mode", "status"},
		),

		ToolInvocationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placefinder_tool_invocations_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolInvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "placefinder_tool_invocation_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		FallbackActivationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placefinder_fallback_activations_total",
				Help: "Total number of fallback strategy activations",
			},
			[]string{"tool_name", "strategy"},
		),

		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "placefinder_errors_total",
				Help: "Total number of errors by category and severity",
			},
			[]string{"category", "severity"},
		),

		BreakerStateGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "placefinder_breaker_state",
				Help: "Circuit breaker state per tool (0=closed, 1=half_open, 2=open)",
			},
			[]string{"tool_name"},
		),
	}
}

// RecordModelRequest records a model invocation outcome.
func (m *Metrics) RecordModelRequest(mode, status string, durationSeconds float64) {
	m.ModelRequestCounter.WithLabelValues(mode, status).Inc()
	m.ModelRequestDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordToolInvocation records a tool execution outcome.
func (m *Metrics) RecordToolInvocation(toolName, status string, durationSeconds float64) {
	m.ToolInvocationCounter.WithLabelValues(toolName, status).Inc()
	m.ToolInvocationDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordFallbackActivation records that a fallback strategy engaged for a
// tool.
func (m *Metrics) RecordFallbackActivation(toolName, strategy string) {
	m.FallbackActivationCounter.WithLabelValues(toolName, strategy).Inc()
}

// RecordFault records an error by taxonomy category.
func (m *Metrics) RecordFault(category, severity string) {
	m.ErrorCounter.WithLabelValues(category, severity).Inc()
}

// SetBreakerState reports the breaker state for a tool.
func (m *Metrics) SetBreakerState(toolName string, state float64) {
	m.BreakerStateGauge.WithLabelValues(toolName).Set(state)
}
