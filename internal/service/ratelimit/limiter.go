package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter enforces a per-account request rate on the decision endpoint.
// Each account gets its own token bucket, created on first use.
type Limiter struct {
	rps   rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 50
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &Limiter{rps: rate.Limit(rps), burst: burst, m: make(map[string]*rate.Limiter)}
}

// Allow reports whether one request for the key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.m[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.m[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
