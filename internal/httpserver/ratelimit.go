package httpserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"predictmarket/internal/httputil"
)

// RateLimiter is a per-client token bucket. Buckets refill at rate tokens per
// second up to burst and are pruned after a few minutes of inactivity so the
// visitor map does not grow without bound.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64
	burst    float64
	visitors map[string]*visitor
}

type visitor struct {
	lastSeen time.Time
	tokens   float64
}

func NewRateLimiter(rate, burst float64) *RateLimiter {
	rl := &RateLimiter{
		rate:     rate,
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
	go func() {
		for {
			time.Sleep(time.Minute)
			rl.prune()
		}
	}()
	return rl
}

func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > 3*time.Minute {
			delete(rl.visitors, ip)
		}
	}
}

// allow takes one token from the client's bucket, reporting false when the
// bucket is empty.
func (rl *RateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[clientIP]
	if !ok {
		v = &visitor{tokens: rl.burst, lastSeen: now}
		rl.visitors[clientIP] = v
	}

	v.tokens += now.Sub(v.lastSeen).Seconds() * rl.rate
	if v.tokens > rl.burst {
		v.tokens = rl.burst
	}
	v.lastSeen = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
