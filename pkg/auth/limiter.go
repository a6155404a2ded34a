package auth

import (
	"sync"

	"golang.org/x/time/rate"
)

// Chat traffic is bursty: a client opening a thread fires a read receipt,
// a message fetch and often a send within the same second. The fallback
// budget reflects that.
const (
	defaultLimiterRPS   = 20
	defaultLimiterBurst = 40
)

// limiterPool hands out one token bucket per caller key (API key, or remote
// IP when no key is presented). The rate is resolved once at construction.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   rate.Limit
	burst int
}

func newLimiterPool(cfg SecConfig) *limiterPool {
	rps := rate.Limit(cfg.RPS)
	if rps <= 0 {
		rps = defaultLimiterRPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultLimiterBurst
	}
	return &limiterPool{m: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.m[key]
	if !ok {
		l = rate.NewLimiter(p.rps, p.burst)
		p.m[key] = l
	}
	p.mu.Unlock()
	return l.Allow()
}
