package ratelimiter

import (
	"sync"
)

// Registry manages rate limiters keyed by model ID. Models without a
// registered limiter are not throttled.
type Registry interface {
	Get(model string) (Limiter, bool)
	Set(model string, limiter Limiter)
}

type mapRegistry struct {
	registry map[string]Limiter
	mu       sync.RWMutex
}

// NewRegistry creates a new in-memory rate limiter registry.
func NewRegistry() Registry {
	return &mapRegistry{
		registry: make(map[string]Limiter),
	}
}

func (r *mapRegistry) Get(model string) (Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limiter, exists := r.registry[model]
	return limiter, exists
}

func (r *mapRegistry) Set(model string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.registry[model] = limiter
}
