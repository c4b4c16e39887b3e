package fallback

import (
	"context"
	"time"

	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/observability"
)

// Operation is one executable unit, typically a tool call.
type Operation func(ctx context.Context) (any, error)

// Policy configures how Execute protects one operation.
type Policy struct {
	// Tool names the operation for breaker state, fault tagging, and metrics.
	Tool string

	// CacheKey enables the response cache when non-empty. Equal keys must
	// mean equal requests.
	CacheKey string

	// Alternate is an optional substitute operation tried after the primary
	// is exhausted.
	Alternate Operation

	// AlternateTool names the alternate for logging and metrics.
	AlternateTool string
}

// Strategy identifies which fallback mechanism produced the result.
type Strategy string

const (
	// StrategyNone means the primary path answered: a fresh cache hit or a
	// first-attempt success.
	StrategyNone Strategy = "none"

	// StrategyRetry means a retry attempt succeeded.
	StrategyRetry Strategy = "retry"

	// StrategyAlternate means the alternate operation answered.
	StrategyAlternate Strategy = "alternate"

	// StrategyCache means a stale cached response was served after live
	// execution failed.
	StrategyCache Strategy = "cache"

	// StrategyBreakerOpen means an open circuit breaker short-circuited the
	// call before any attempt ran.
	StrategyBreakerOpen Strategy = "circuit_breaker_open"
)

// Result is the outcome of an orchestrated execution. A stale-cache success
// is a degraded one: it carries both the payload and the fault that forced
// the degradation.
type Result struct {
	Succeeded bool
	Payload   any
	Fault     *faults.Record
	Attempts  int
	Strategy  Strategy
	Elapsed   time.Duration
}

// Executor runs operations through the fixed strategy order: fresh cache,
// breaker gate, retry loop, alternate operation, stale cache.
type Executor struct {
	registry *Registry
	logger   *observability.Logger
	metrics  *observability.Metrics
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes an Executor.
type Option func(*Executor)

// WithClock replaces the wall clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Executor) { e.clock = clock }
}

// WithSleep replaces the backoff sleeper, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithLogger attaches a logger.
func WithLogger(logger *observability.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics attaches metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = metrics }
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		clock:    time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs op under the policy. It never panics and never returns an
// unclassified error: failures surface as a Result with a fault record.
func (e *Executor) Execute(ctx context.Context, op Operation, p Policy) Result {
	start := e.clock()
	result := Result{Strategy: StrategyNone}
	finish := func(r Result) Result {
		r.Elapsed = e.clock().Sub(start)
		return r
	}

	cache := e.registry.Cache()
	if p.CacheKey != "" {
		if payload, ok := cache.GetFresh(p.CacheKey, e.clock()); ok {
			e.logDebug(ctx, "serving fresh cached response", "tool", p.Tool)
			result.Succeeded = true
			result.Payload = payload
			return finish(result)
		}
	}

	breaker := e.registry.BreakerFor(p.Tool)
	settings := e.registry.Settings()

	var lastFault *faults.Record
	if !breaker.Allow(e.clock()) {
		lastFault = faults.New(faults.CategoryServiceUnavailable, faults.SeverityHigh,
			"circuit breaker is open").WithTool(p.Tool)
		result.Strategy = StrategyBreakerOpen
		e.recordActivation(p.Tool, StrategyBreakerOpen)
		e.logWarn(ctx, "circuit breaker open, skipping execution", "tool", p.Tool)
	} else {
		for attempt := 1; attempt <= settings.MaxAttempts; attempt++ {
			result.Attempts = attempt

			payload, err := op(ctx)
			if err == nil {
				breaker.RecordSuccess()
				e.reportBreaker(p.Tool, breaker)
				if p.CacheKey != "" {
					cache.Put(p.CacheKey, payload, e.clock())
				}
				result.Succeeded = true
				result.Payload = payload
				if attempt > 1 {
					result.Strategy = StrategyRetry
					e.recordActivation(p.Tool, StrategyRetry)
				}
				return finish(result)
			}

			rec := faults.Classify(err).WithTool(p.Tool)
			lastFault = rec
			breaker.RecordFailure(e.clock())
			e.reportBreaker(p.Tool, breaker)
			e.logWarn(ctx, "operation failed",
				"tool", p.Tool, "attempt", attempt, "category", string(rec.Category))

			// Breaker outcome is recorded above; cancellation propagates now.
			if ctx.Err() != nil {
				result.Fault = rec
				return finish(result)
			}
			if !rec.Retryable() || attempt >= settings.MaxAttempts {
				break
			}

			delay := e.registry.backoffDelay(attempt)
			if rec.Category == faults.CategoryRateLimit && rec.RetryAfter > 0 {
				delay = time.Duration(rec.RetryAfter) * time.Second
			}
			if err := e.sleep(ctx, delay); err != nil {
				result.Fault = faults.Classify(err).WithTool(p.Tool)
				return finish(result)
			}
		}
	}

	if p.Alternate != nil {
		payload, err := p.Alternate(ctx)
		if err == nil {
			e.recordActivation(p.Tool, StrategyAlternate)
			e.logInfo(ctx, "alternate operation answered",
				"tool", p.Tool, "alternate", p.AlternateTool)
			if p.CacheKey != "" {
				cache.Put(p.CacheKey, payload, e.clock())
			}
			result.Succeeded = true
			result.Payload = payload
			result.Strategy = StrategyAlternate
			return finish(result)
		}
		e.logWarn(ctx, "alternate operation failed",
			"tool", p.Tool, "alternate", p.AlternateTool,
			"category", string(faults.Classify(err).Category))
	}

	if p.CacheKey != "" {
		if payload, ok := cache.GetStale(p.CacheKey, e.clock()); ok {
			e.recordActivation(p.Tool, StrategyCache)
			e.logInfo(ctx, "serving stale cached response after failure", "tool", p.Tool)
			result.Succeeded = true
			result.Payload = payload
			result.Fault = lastFault
			result.Strategy = StrategyCache
			return finish(result)
		}
	}

	if lastFault == nil {
		lastFault = faults.New(faults.CategoryInternal, faults.SeverityCritical,
			"operation failed without a recorded fault").WithTool(p.Tool)
	}
	if e.metrics != nil {
		e.metrics.RecordFault(string(lastFault.Category), string(lastFault.Severity))
	}
	result.Fault = lastFault
	return finish(result)
}

func (e *Executor) recordActivation(tool string, strategy Strategy) {
	if e.metrics != nil {
		e.metrics.RecordFallbackActivation(tool, string(strategy))
	}
}

func (e *Executor) reportBreaker(tool string, b *Breaker) {
	if e.metrics != nil {
		e.metrics.SetBreakerState(tool, b.State().GaugeValue())
	}
}

func (e *Executor) logDebug(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(ctx, msg, args...)
	}
}

func (e *Executor) logInfo(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(ctx, msg, args...)
	}
}

func (e *Executor) logWarn(ctx context.Context, msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(ctx, msg, args...)
	}
}
