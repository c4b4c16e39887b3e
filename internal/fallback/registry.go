package fallback

import (
	"sync"
	"time"

	"github.com/haasonsaas/placefinder/internal/config"
)

// Registry holds the process-wide resilience state: one breaker per tool and
// the shared response cache. Instances are injectable so tests can run
// against private state.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cache    *ResponseCache
	settings config.FallbackSettings
}

// NewRegistry creates a registry from the resolved fallback settings.
func NewRegistry(settings config.FallbackSettings) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cache:    NewResponseCache(settings.CacheTTL, settings.StaleTTL, 1024),
		settings: settings,
	}
}

// BreakerFor returns the breaker for a tool, creating it on first use.
func (r *Registry) BreakerFor(tool string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[tool]
	if !ok {
		b = NewBreaker(r.settings.BreakerThreshold, r.settings.RecoveryTimeout)
		r.breakers[tool] = b
	}
	return b
}

// Cache returns the shared response cache.
func (r *Registry) Cache() *ResponseCache {
	return r.cache
}

// Settings returns the resolved fallback settings.
func (r *Registry) Settings() config.FallbackSettings {
	return r.settings
}

// backoffDelay computes the capped exponential delay before the next attempt.
func (r *Registry) backoffDelay(attempt int) time.Duration {
	delay := float64(r.settings.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= r.settings.Multiplier
		if delay >= float64(r.settings.MaxDelay) {
			return r.settings.MaxDelay
		}
	}
	if delay > float64(r.settings.MaxDelay) {
		return r.settings.MaxDelay
	}
	return time.Duration(delay)
}
