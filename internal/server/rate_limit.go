package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter enforces a fixed-window request budget per client IP. Solve
// requests cost more than listings, so a client polling /health cannot
// starve itself of solves and vice versa.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientWindow
	budget   int
	window   time.Duration
	cleanup  time.Duration
	trust    bool
	stopOnce sync.Once
	stopChan chan struct{}
}

type clientWindow struct {
	spent int
	start time.Time
}

// RateLimiterConfig holds configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerMinute is the budget of each client per minute, in
	// units of one cheap request. Default: 60
	RequestsPerMinute int
	// CleanupInterval is how often idle clients are forgotten.
	// Default: 5 minutes
	CleanupInterval time.Duration
	// TrustProxyHeaders identifies clients by X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

// SolveCost is the budget charged for one /solve request.
const SolveCost = 5

// DefaultRateLimiterConfig returns the default rate limiter configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		TrustProxyHeaders: true,
	}
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop. Call
// Stop to release it.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		clients:  make(map[string]*clientWindow),
		budget:   config.RequestsPerMinute,
		window:   time.Minute,
		cleanup:  config.CleanupInterval,
		trust:    config.TrustProxyHeaders,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow charges cost to client and reports whether the budget allowed it,
// along with the budget left in the current window. A cost above the
// whole budget is charged as the whole budget.
func (rl *RateLimiter) Allow(client string, cost int) (ok bool, remaining int) {
	cost = max(1, min(cost, rl.budget))

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, exists := rl.clients[client]
	if !exists || now.Sub(w.start) >= rl.window {
		w = &clientWindow{start: now}
		rl.clients[client] = w
	}
	if w.spent+cost > rl.budget {
		return false, rl.budget - w.spent
	}
	w.spent += cost
	return true, rl.budget - w.spent
}

// Budget returns the per-window budget.
func (rl *RateLimiter) Budget() int { return rl.budget }

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for ip, w := range rl.clients {
				if now.Sub(w.start) > 2*rl.window {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopChan:
			return
		}
	}
}

// Stop stops the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// RateLimitMiddleware rejects requests over budget with 429 and reports
// the remaining budget in X-RateLimit-Remaining.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cost := 1
		if r.URL.Path == "/solve" {
			cost = SolveCost
		}
		ok, remaining := rl.Allow(rl.clientIP(r), cost)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.budget))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too Many Requests","message":"Rate limit exceeded. Please try again later."}`))
			return
		}
		next(w, r)
	}
}

// clientIP identifies the client: the first X-Forwarded-For entry, then
// X-Real-IP when proxy headers are trusted, otherwise the remote address
// without its port.
func (rl *RateLimiter) clientIP(r *http.Request) string {
	if rl.trust {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}
	return stripPort(r.RemoteAddr)
}

// stripPort removes the port from an IPv4 or IPv6 address.
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return strings.Trim(addr, "[]")
	}
	return host
}
