package api

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// requestsPerSecond and requestBurst bound each client's request rate.
	// Turns are expensive (model calls plus SQL), so the ceiling is low.
	requestsPerSecond = 5
	requestBurst      = 10

	// visitorTTL is how long an idle client's limiter is kept.
	visitorTTL = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiter applies a token bucket per client address. Stale entries are
// evicted inline during lookups, so no background janitor is needed.
type clientLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newClientLimiter() *clientLimiter {
	return &clientLimiter{
		visitors:  make(map[string]*visitor),
		lastSweep: time.Now(),
	}
}

func (cl *clientLimiter) allow(addr string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := time.Now()
	if now.Sub(cl.lastSweep) > visitorTTL {
		for k, v := range cl.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(cl.visitors, k)
			}
		}
		cl.lastSweep = now
	}

	v, ok := cl.visitors[addr]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(requestsPerSecond, requestBurst)}
		cl.visitors[addr] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cl.allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
