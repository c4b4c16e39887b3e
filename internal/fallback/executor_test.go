package fallback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/faults"
)

func testSettings() config.FallbackSettings {
	return config.FallbackSettings{
		MaxAttempts:      3,
		BaseDelay:        time.Second,
		Multiplier:       2.0,
		MaxDelay:         30 * time.Second,
		BreakerThreshold: 5,
		RecoveryTimeout:  time.Minute,
		CacheTTL:         5 * time.Minute,
		StaleTTL:         15 * time.Minute,
	}
}

// testClock is a settable clock shared between the executor and the test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestExecutor(settings config.FallbackSettings, clock *testClock, slept *[]time.Duration) (*Executor, *Registry) {
	reg := NewRegistry(settings)
	exec := NewExecutor(reg,
		WithClock(clock.Now),
		WithSleep(func(ctx context.Context, d time.Duration) error {
			if slept != nil {
				*slept = append(*slept, d)
			}
			return ctx.Err()
		}),
	)
	return exec, reg
}

func retryableErr() error {
	return faults.New(faults.CategoryServiceUnavailable, faults.SeverityHigh, "upstream down")
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	clock := newTestClock()
	var slept []time.Duration
	exec, _ := newTestExecutor(testSettings(), clock, &slept)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, retryableErr()
		}
		return "forecast", nil
	}

	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather"})
	if !res.Succeeded {
		t.Fatalf("expected success, fault: %v", res.Fault)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if res.Strategy != StrategyRetry {
		t.Errorf("strategy = %s, want retry", res.Strategy)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Errorf("backoff delays = %v, want [1s 2s]", slept)
	}
}

func TestExecuteDoesNotRetryNonRetryable(t *testing.T) {
	clock := newTestClock()
	exec, _ := newTestExecutor(testSettings(), clock, nil)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return nil, faults.New(faults.CategoryValidation, faults.SeverityMedium, "bad coordinates")
	}

	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather"})
	if res.Succeeded {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Errorf("validation errors must not be retried, calls = %d", calls)
	}
	if res.Fault.Category != faults.CategoryValidation {
		t.Errorf("fault category = %s", res.Fault.Category)
	}
}

func TestExecuteHonorsRateLimitRetryAfter(t *testing.T) {
	clock := newTestClock()
	var slept []time.Duration
	exec, _ := newTestExecutor(testSettings(), clock, &slept)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, faults.New(faults.CategoryRateLimit, faults.SeverityMedium, "throttled").WithRetryAfter(5)
		}
		return "ok", nil
	}

	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather"})
	if !res.Succeeded {
		t.Fatalf("expected success, fault: %v", res.Fault)
	}
	if len(slept) != 1 || slept[0] != 5*time.Second {
		t.Errorf("retry_after hint should override backoff, slept = %v", slept)
	}
}

func TestExecuteOpensBreakerAndGatesCalls(t *testing.T) {
	settings := testSettings()
	settings.MaxAttempts = 1
	settings.BreakerThreshold = 2
	clock := newTestClock()
	exec, reg := newTestExecutor(settings, clock, nil)

	failing := func(ctx context.Context) (any, error) { return nil, retryableErr() }

	exec.Execute(context.Background(), failing, Policy{Tool: "get_weather"})
	exec.Execute(context.Background(), failing, Policy{Tool: "get_weather"})
	if reg.BreakerFor("get_weather").State() != StateOpen {
		t.Fatalf("breaker should be open after threshold failures")
	}

	calls := 0
	counted := func(ctx context.Context) (any, error) { calls++; return "x", nil }
	res := exec.Execute(context.Background(), counted, Policy{Tool: "get_weather"})
	if calls != 0 {
		t.Errorf("open breaker must gate execution, calls = %d", calls)
	}
	if res.Succeeded {
		t.Fatal("gated call should fail without alternate or cache")
	}
	if res.Fault.Category != faults.CategoryServiceUnavailable {
		t.Errorf("gated fault category = %s", res.Fault.Category)
	}
	if res.Strategy != StrategyBreakerOpen {
		t.Errorf("gated strategy = %s, want circuit_breaker_open", res.Strategy)
	}
	if res.Attempts != 0 {
		t.Errorf("gated call ran %d attempts, want 0", res.Attempts)
	}

	// After the recovery window a probe goes through and closes the breaker.
	clock.Advance(settings.RecoveryTimeout)
	res = exec.Execute(context.Background(), counted, Policy{Tool: "get_weather"})
	if !res.Succeeded || calls != 1 {
		t.Fatalf("half-open probe should run, calls = %d", calls)
	}
	if res.Strategy != StrategyNone {
		t.Errorf("probe success strategy = %s, want none", res.Strategy)
	}
	if reg.BreakerFor("get_weather").State() != StateClosed {
		t.Errorf("successful probe should close the breaker")
	}
}

func TestExecuteGatedCallPrefersStaleCache(t *testing.T) {
	settings := testSettings()
	settings.MaxAttempts = 1
	settings.BreakerThreshold = 1
	clock := newTestClock()
	exec, reg := newTestExecutor(settings, clock, nil)

	reg.Cache().Put("weather:seattle", "older forecast", clock.Now())
	clock.Advance(settings.CacheTTL + time.Minute)

	failing := func(ctx context.Context) (any, error) { return nil, retryableErr() }
	exec.Execute(context.Background(), failing, Policy{Tool: "get_weather"})
	if reg.BreakerFor("get_weather").State() != StateOpen {
		t.Fatal("breaker should be open")
	}

	res := exec.Execute(context.Background(), failing,
		Policy{Tool: "get_weather", CacheKey: "weather:seattle"})
	if !res.Succeeded || res.Payload != "older forecast" {
		t.Fatalf("stale entry should answer the gated call, got %+v", res)
	}
	if res.Strategy != StrategyCache {
		t.Errorf("strategy = %s, want cache", res.Strategy)
	}
}

func TestExecuteBreakerIsolatedPerTool(t *testing.T) {
	settings := testSettings()
	settings.MaxAttempts = 1
	settings.BreakerThreshold = 1
	clock := newTestClock()
	exec, reg := newTestExecutor(settings, clock, nil)

	failing := func(ctx context.Context) (any, error) { return nil, retryableErr() }
	exec.Execute(context.Background(), failing, Policy{Tool: "get_weather"})

	if reg.BreakerFor("get_weather").State() != StateOpen {
		t.Fatal("get_weather breaker should be open")
	}
	if reg.BreakerFor("get_alerts").State() != StateClosed {
		t.Errorf("other tools must keep their own breaker state")
	}
}

func TestExecuteUsesAlternate(t *testing.T) {
	settings := testSettings()
	settings.MaxAttempts = 2
	clock := newTestClock()
	exec, _ := newTestExecutor(settings, clock, nil)

	primary := func(ctx context.Context) (any, error) { return nil, retryableErr() }
	alternate := func(ctx context.Context) (any, error) { return "backup data", nil }

	res := exec.Execute(context.Background(), primary, Policy{
		Tool:          "get_weather",
		Alternate:     alternate,
		AlternateTool: "get_weather_basic",
	})
	if !res.Succeeded {
		t.Fatalf("expected alternate success, fault: %v", res.Fault)
	}
	if res.Strategy != StrategyAlternate {
		t.Errorf("strategy = %s, want alternate", res.Strategy)
	}
	if res.Payload != "backup data" {
		t.Errorf("payload = %v", res.Payload)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 primary attempts", res.Attempts)
	}
}

func TestExecuteFreshCacheShortCircuits(t *testing.T) {
	clock := newTestClock()
	exec, reg := newTestExecutor(testSettings(), clock, nil)

	reg.Cache().Put("weather:seattle", "cached forecast", clock.Now())

	calls := 0
	op := func(ctx context.Context) (any, error) { calls++; return "live", nil }

	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather", CacheKey: "weather:seattle"})
	if calls != 0 {
		t.Errorf("fresh cache hit must not execute the operation")
	}
	if res.Strategy != StrategyNone {
		t.Errorf("fresh hit strategy = %s, want none", res.Strategy)
	}
	if res.Payload != "cached forecast" {
		t.Errorf("payload = %v", res.Payload)
	}
}

func TestExecuteServesStaleCacheAfterFailure(t *testing.T) {
	settings := testSettings()
	settings.MaxAttempts = 1
	clock := newTestClock()
	exec, reg := newTestExecutor(settings, clock, nil)

	reg.Cache().Put("weather:seattle", "older forecast", clock.Now())
	clock.Advance(settings.CacheTTL + time.Minute) // past fresh, within stale

	op := func(ctx context.Context) (any, error) { return nil, retryableErr() }

	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather", CacheKey: "weather:seattle"})
	if !res.Succeeded {
		t.Fatalf("stale entry should be served, fault: %v", res.Fault)
	}
	if res.Strategy != StrategyCache {
		t.Errorf("strategy = %s, want cache", res.Strategy)
	}
	if res.Payload != "older forecast" {
		t.Errorf("payload = %v", res.Payload)
	}
	if res.Fault == nil {
		t.Errorf("degraded result should carry the originating fault")
	}
}

func TestExecuteSuccessRefreshesCache(t *testing.T) {
	clock := newTestClock()
	exec, reg := newTestExecutor(testSettings(), clock, nil)

	op := func(ctx context.Context) (any, error) { return "live forecast", nil }
	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather", CacheKey: "weather:seattle"})
	if !res.Succeeded || res.Strategy != StrategyNone {
		t.Fatalf("unexpected result %+v", res)
	}

	if payload, ok := reg.Cache().GetFresh("weather:seattle", clock.Now()); !ok || payload != "live forecast" {
		t.Errorf("successful response should be cached, got %v %v", payload, ok)
	}
}

func TestExecuteRecordsBreakerOnCancellation(t *testing.T) {
	settings := testSettings()
	settings.BreakerThreshold = 1
	clock := newTestClock()
	exec, reg := newTestExecutor(settings, clock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	op := func(ctx context.Context) (any, error) {
		cancel()
		return nil, ctx.Err()
	}

	res := exec.Execute(ctx, op, Policy{Tool: "get_weather"})
	if res.Succeeded {
		t.Fatal("canceled execution must fail")
	}
	if reg.BreakerFor("get_weather").State() != StateOpen {
		t.Errorf("breaker outcome must be recorded before cancellation propagates")
	}
}

func TestExecuteClassifiesPlainErrors(t *testing.T) {
	settings := testSettings()
	settings.MaxAttempts = 1
	clock := newTestClock()
	exec, _ := newTestExecutor(settings, clock, nil)

	op := func(ctx context.Context) (any, error) { return nil, errors.New("wat") }
	res := exec.Execute(context.Background(), op, Policy{Tool: "get_weather"})
	if res.Fault == nil || res.Fault.Category != faults.CategoryInternal {
		t.Errorf("unclassifiable errors must become internal faults, got %+v", res.Fault)
	}
	if res.Fault.Context.ToolName != "get_weather" {
		t.Errorf("fault should be tagged with the tool name")
	}
}
