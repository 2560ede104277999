package blitzware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxLimiterEntries caps the per-IP limiter map so an address scan cannot
// grow it without bound
const maxLimiterEntries = 10000

// ipLimiter applies a token-bucket rate limit per client IP
type ipLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rate    rate.Limit
	burst   int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newIPLimiter returns nil when limiting is disabled
func newIPLimiter(cfg RateLimitConfig) *ipLimiter {
	if cfg.Rate <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.Rate
	}
	return &ipLimiter{
		entries: make(map[string]*limiterEntry),
		rate:    rate.Limit(cfg.Rate),
		burst:   burst,
	}
}

// Allow reports whether a request from ip may proceed
func (l *ipLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[ip]
	if !ok {
		if len(l.entries) >= maxLimiterEntries {
			l.sweepLocked()
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// sweepLocked drops entries idle long enough that their buckets are full
// again. Caller holds the lock.
func (l *ipLimiter) sweepLocked() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
	// Pathological case: everything is recent. Drop arbitrary entries, which
	// at worst grants a few extra requests.
	for ip := range l.entries {
		if len(l.entries) < maxLimiterEntries {
			break
		}
		delete(l.entries, ip)
	}
}

// clientIP extracts the remote IP, falling back to the raw RemoteAddr when it
// carries no port
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
