package http

import (
	"sync"
	"time"
)

// rateLimiter is a per-client fixed-window counter. It guards the login
// form against credential stuffing; nothing else is rate limited.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*clientInfo
}

type clientInfo struct {
	windowStart time.Time
	requests    int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientInfo),
	}
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.windowStart) > rl.window {
		rl.clients[clientIP] = &clientInfo{windowStart: now, requests: 1}
		rl.sweep(now)
		return true
	}
	client.requests++
	return client.requests <= rl.limit
}

// sweep drops stale windows; called opportunistically while holding the lock.
func (rl *rateLimiter) sweep(now time.Time) {
	cutoff := now.Add(-2 * rl.window)
	for ip, client := range rl.clients {
		if client.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}
