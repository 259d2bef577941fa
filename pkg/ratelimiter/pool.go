package ratelimiter

import (
	"context"
	"sync"
)

// PooledRateLimiter keeps one limiter per RPC node.
type PooledRateLimiter struct {
	limiters map[string]*RateLimiter
	mutex    sync.RWMutex
	rps      int
	burst    int
}

func NewPooledRateLimiter(rps int, burst int) *PooledRateLimiter {
	return &PooledRateLimiter{
		limiters: make(map[string]*RateLimiter),
		rps:      rps,
		burst:    burst,
	}
}

// Wait waits for permission to make a request to the specified node
func (p *PooledRateLimiter) Wait(ctx context.Context, node string) error {
	return p.getLimiter(node).Wait(ctx)
}

func (p *PooledRateLimiter) TryAcquire(node string) bool {
	return p.getLimiter(node).TryAcquire()
}

func (p *PooledRateLimiter) getLimiter(node string) *RateLimiter {
	p.mutex.RLock()
	limiter, exists := p.limiters[node]
	p.mutex.RUnlock()
	if exists {
		return limiter
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := p.limiters[node]; exists {
		return limiter
	}
	limiter = NewRateLimiter(p.rps, p.burst)
	p.limiters[node] = limiter
	return limiter
}

// Stats returns available tokens and capacity per node.
func (p *PooledRateLimiter) Stats() map[string]map[string]int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := make(map[string]map[string]int, len(p.limiters))
	for node, limiter := range p.limiters {
		available, capacity, rps := limiter.Stats()
		stats[node] = map[string]int{
			"available_tokens": available,
			"capacity":         capacity,
			"rps":              rps,
		}
	}
	return stats
}
