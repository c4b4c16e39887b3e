package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func TestRecordToolInvocation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordToolInvocation("get_weather", "success", 0.25)
	m.RecordToolInvocation("get_weather", "success", 0.5)
	m.RecordToolInvocation("get_weather", "error", 1.0)

	if got := testutil.ToFloat64(m.ToolInvocationCounter.WithLabelValues("get_weather", "success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ToolInvocationCounter.WithLabelValues("get_weather", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestRecordFallbackActivation(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFallbackActivation("get_weather", "retry")
	m.RecordFallbackActivation("get_weather", "cache")
	m.RecordFallbackActivation("get_weather", "retry")

	if got := testutil.ToFloat64(m.FallbackActivationCounter.WithLabelValues("get_weather", "retry")); got != 2 {
		t.Errorf("retry activations = %v, want 2", got)
	}
}

func TestRecordFaultByCategory(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordFault("rate_limit", "medium")
	m.RecordFault("rate_limit", "medium")

	if got := testutil.ToFloat64(m.ErrorCounter.WithLabelValues("rate_limit", "medium")); got != 2 {
		t.Errorf("error count = %v, want 2", got)
	}
}

func TestBreakerStateGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.SetBreakerState("get_weather", 2)
	if got := testutil.ToFloat64(m.BreakerStateGauge.WithLabelValues("get_weather")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}
}
