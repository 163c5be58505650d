package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/datagrid/internal/web/middleware"
)

// rateLimiter admits at most limit requests per client IP in each fixed
// window. Windows start at a client's first request.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*windowCount
}

type windowCount struct {
	start time.Time
	n     int
}

// newRateLimiter starts a limiter whose idle clients are forgotten every
// window until ctx ends.
func newRateLimiter(ctx context.Context, limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*windowCount),
	}
	go rl.forgetIdle(ctx)
	return rl
}

func (rl *rateLimiter) forgetIdle(ctx context.Context) {
	tick := time.NewTicker(rl.window)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		rl.mu.Lock()
		cutoff := rl.now().Add(-2 * rl.window)
		for ip, c := range rl.clients {
			if c.start.Before(cutoff) {
				delete(rl.clients, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow counts a request from ip and reports whether it fits the budget.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[ip]
	if !ok || now.Sub(c.start) >= rl.window {
		c = &windowCount{start: now}
		rl.clients[ip] = c
	}
	if c.n >= rl.limit {
		return false
	}
	c.n++
	return true
}

// middleware rejects requests over budget with 429. The client address has
// already been resolved by TrustedRealIP.
func (rl *rateLimiter) middleware(s *Server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(middleware.ClientIP(r)) {
				s.respondError(w, r, errRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
