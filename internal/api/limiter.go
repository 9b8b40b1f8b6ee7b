package api

import (
	"sync"

	"labsched/internal/config"

	"golang.org/x/time/rate"
)

// rateLimiter keeps a token bucket per caller. It backs up the shared cache
// counter when the cache is unreachable.
type rateLimiter struct {
	limiters sync.Map
	cfg      config.ReservationsConfig
}

func newRateLimiter(cfg config.ReservationsConfig) *rateLimiter {
	return &rateLimiter{cfg: cfg}
}

func (l *rateLimiter) allow(key string) bool {
	if l.cfg.RateLimitRequests <= 0 || l.cfg.RateLimitWindow <= 0 {
		return true
	}
	return l.getLimiter(key).Allow()
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	rps := float64(l.cfg.RateLimitRequests) / float64(l.cfg.RateLimitWindow)
	burst := l.cfg.RateLimitRequests
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(rps), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}
