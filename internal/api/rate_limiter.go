package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"flight-status-sim/internal/metrics"
)

// RateLimiter keeps one token bucket per client address
type RateLimiter struct {
	clients   map[string]*clientBucket
	perSecond rate.Limit
	burstSize int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
	mu        sync.Mutex
	metrics   *metrics.Metrics
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new per-client rate limiter. Idle clients are
// forgotten after ttl.
func NewRateLimiter(requestsPerSecond float64, burstSize int, ttl time.Duration, m *metrics.Metrics) *RateLimiter {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RateLimiter{
		clients:   make(map[string]*clientBucket),
		perSecond: rate.Limit(requestsPerSecond),
		burstSize: burstSize,
		ttl:       ttl,
		now:       time.Now,
		metrics:   m,
	}
}

// Allow checks if client may make another request now
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > rl.ttl {
		for key, c := range rl.clients {
			if now.Sub(c.lastSeen) > rl.ttl {
				delete(rl.clients, key)
			}
		}
		rl.lastSweep = now
	}

	c, ok := rl.clients[client]
	if !ok {
		c = &clientBucket{limiter: rate.NewLimiter(rl.perSecond, rl.burstSize)}
		rl.clients[client] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Middleware rejects requests over the client's budget with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			if rl.metrics != nil {
				rl.metrics.IncrementHTTPRateLimited()
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
