// Package middleware holds HTTP middleware shared by the API server.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a per-client token bucket. Alert intake fans out into
// paid model calls, so a runaway alert source is throttled here before
// it reaches the pipeline.
type RateLimiter struct {
	mu             sync.Mutex
	clients        map[string]*bucket
	requestsPerMin int
	cleanupTicker  *time.Ticker
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter allowing requestsPerMin
// requests per client per minute.
func NewRateLimiter(requestsPerMin int) *RateLimiter {
	rl := &RateLimiter{
		clients:        make(map[string]*bucket),
		requestsPerMin: requestsPerMin,
		cleanupTicker:  time.NewTicker(5 * time.Minute),
	}

	go rl.cleanup()

	return rl
}

// Wrap returns a handler that enforces the rate limit before calling
// next.
func (rl *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientKey(r)) {
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a client by remote host, ignoring the ephemeral
// port so sequential connections share one bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// allow checks if a request from the given client should be allowed.
func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, exists := rl.clients[client]

	if !exists {
		rl.clients[client] = &bucket{
			tokens:     rl.requestsPerMin - 1,
			lastRefill: now,
		}
		return true
	}

	// Refill tokens based on time elapsed
	elapsed := now.Sub(b.lastRefill)
	tokensToAdd := int(elapsed.Minutes() * float64(rl.requestsPerMin))

	if tokensToAdd > 0 {
		b.tokens = min(rl.requestsPerMin, b.tokens+tokensToAdd)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}

	return false
}

// cleanup removes stale client entries.
func (rl *RateLimiter) cleanup() {
	for range rl.cleanupTicker.C {
		rl.mu.Lock()
		now := time.Now()
		for client, b := range rl.clients {
			if now.Sub(b.lastRefill) > 10*time.Minute {
				delete(rl.clients, client)
			}
		}
		rl.mu.Unlock()
	}
}

// Stop stops the cleanup ticker.
func (rl *RateLimiter) Stop() {
	rl.cleanupTicker.Stop()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
