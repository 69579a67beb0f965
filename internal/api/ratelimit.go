package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter provides IP-based rate limiting using a token bucket per client.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitorLimiter
	rate     rate.Limit
	burst    int
	idle     time.Duration
	stopOnce sync.Once
	done     chan struct{}
}

type visitorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Rate is requests per second allowed.
	Rate float64
	// Burst is the maximum burst size.
	Burst int
	// CleanupInterval is how often idle clients are forgotten.
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig returns the limits for public write endpoints.
// A registration desk or a scanner tablet stays well below 5 requests/second.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            5,
		Burst:           10,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewRateLimiter creates a new IP-based rate limiter and starts its cleanup loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*visitorLimiter),
		rate:     rate.Limit(cfg.Rate),
		burst:    cfg.Burst,
		idle:     cfg.CleanupInterval,
		done:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow checks if a request from the given IP should be allowed.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, exists := rl.limiters[ip]
	if !exists {
		v = &visitorLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = v
	}
	v.lastSeen = time.Now()
	rl.mu.Unlock()

	return v.limiter.Allow()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.idle)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.prune(time.Now().Add(-2 * rl.idle))
		case <-rl.done:
			return
		}
	}
}

// prune removes limiters not used since threshold.
func (rl *RateLimiter) prune(threshold time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, v := range rl.limiters {
		if v.lastSeen.Before(threshold) {
			delete(rl.limiters, ip)
		}
	}
}

// size returns the number of tracked clients.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Stop stops the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

// Middleware returns an HTTP middleware that applies rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(extractIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractIP returns the client IP. RemoteAddr is trusted; no reverse proxy
// is assumed in front of the server.
func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// AuthFailureLimiter locks out IPs after repeated failed logins.
type AuthFailureLimiter struct {
	mu       sync.Mutex
	failures map[string]*authFailure
	maxFails int
	window   time.Duration
	lockout  time.Duration
	now      func() time.Time
}

type authFailure struct {
	count    int
	firstAt  time.Time
	lockedAt time.Time
}

// AuthFailureLimiterConfig configures auth failure limiting.
type AuthFailureLimiterConfig struct {
	MaxFailures   int           // failures before lockout
	Window        time.Duration // window for counting failures
	LockoutPeriod time.Duration // how long a lockout lasts
}

// DefaultAuthFailureLimiterConfig returns the default lockout policy.
func DefaultAuthFailureLimiterConfig() AuthFailureLimiterConfig {
	return AuthFailureLimiterConfig{
		MaxFailures:   5,
		Window:        5 * time.Minute,
		LockoutPeriod: 15 * time.Minute,
	}
}

// NewAuthFailureLimiter creates a new auth failure limiter.
func NewAuthFailureLimiter(cfg AuthFailureLimiterConfig) *AuthFailureLimiter {
	return &AuthFailureLimiter{
		failures: make(map[string]*authFailure),
		maxFails: cfg.MaxFailures,
		window:   cfg.Window,
		lockout:  cfg.LockoutPeriod,
		now:      time.Now,
	}
}

// LockedFor returns how long ip remains locked out, or zero.
func (afl *AuthFailureLimiter) LockedFor(ip string) time.Duration {
	afl.mu.Lock()
	defer afl.mu.Unlock()

	f, ok := afl.failures[ip]
	if !ok || f.lockedAt.IsZero() {
		return 0
	}
	remaining := afl.lockout - afl.now().Sub(f.lockedAt)
	if remaining <= 0 {
		delete(afl.failures, ip)
		return 0
	}
	return remaining
}

// RecordFailure records a failed login for ip.
// Returns the number of remaining attempts, or -1 if now locked.
func (afl *AuthFailureLimiter) RecordFailure(ip string) int {
	afl.mu.Lock()
	defer afl.mu.Unlock()

	now := afl.now()
	f, ok := afl.failures[ip]
	if !ok || now.Sub(f.firstAt) > afl.window {
		afl.failures[ip] = &authFailure{count: 1, firstAt: now}
		if afl.maxFails <= 1 {
			afl.failures[ip].lockedAt = now
			return -1
		}
		return afl.maxFails - 1
	}

	f.count++
	if f.count >= afl.maxFails {
		f.lockedAt = now
		return -1
	}
	return afl.maxFails - f.count
}

// RecordSuccess clears the failure record for ip.
func (afl *AuthFailureLimiter) RecordSuccess(ip string) {
	afl.mu.Lock()
	defer afl.mu.Unlock()
	delete(afl.failures, ip)
}

// Middleware rejects requests from locked-out IPs.
func (afl *AuthFailureLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := afl.LockedFor(extractIP(r)); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())+1))
			writeMessage(w, http.StatusTooManyRequests, "too many failed login attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}
