package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimit configures a RateLimiter.
type RateLimit struct {
	RequestsPerMinute int
	BurstLimit        int
}

// RateLimiter is a token bucket per client IP.
type RateLimiter struct {
	config RateLimit

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	now     func() time.Time

	cleanupTicker *time.Ticker
	done          chan struct{}
	stopOnce      sync.Once
}

type tokenBucket struct {
	tokens     int
	lastRefill time.Time
}

// NewRateLimiter creates a limiter and starts its bucket cleanup.
func NewRateLimiter(config RateLimit) *RateLimiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 60
	}
	if config.BurstLimit <= 0 {
		config.BurstLimit = config.RequestsPerMinute
	}
	rl := &RateLimiter{
		config:        config,
		buckets:       make(map[string]*tokenBucket),
		now:           time.Now,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow takes one token from ip's bucket.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	bucket, ok := rl.buckets[ip]
	if !ok {
		bucket = &tokenBucket{tokens: rl.config.BurstLimit, lastRefill: now}
		rl.buckets[ip] = bucket
	}

	refill := time.Minute / time.Duration(rl.config.RequestsPerMinute)
	if add := int(now.Sub(bucket.lastRefill) / refill); add > 0 {
		bucket.tokens = min(rl.config.BurstLimit, bucket.tokens+add)
		bucket.lastRefill = bucket.lastRefill.Add(time.Duration(add) * refill)
	}

	if bucket.tokens == 0 {
		return false
	}
	bucket.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.done:
			return
		case <-rl.cleanupTicker.C:
			rl.mu.Lock()
			cutoff := rl.now().Add(-10 * time.Minute)
			for ip, bucket := range rl.buckets {
				if bucket.lastRefill.Before(cutoff) {
					delete(rl.buckets, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.done)
	})
}

// ClientIP returns the first valid address of X-Forwarded-For, then
// X-Real-IP, then the connection's remote address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
