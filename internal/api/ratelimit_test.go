package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10, Burst: 5, CleanupInterval: time.Hour})
	defer rl.Stop()

	ip := "192.168.1.100"
	for i := 0; i < 5; i++ {
		if !rl.Allow(ip) {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow(ip) {
		t.Error("6th request should be denied")
	}
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("192.168.1.100")
	rl.Allow("192.168.1.100")
	if rl.Allow("192.168.1.100") {
		t.Error("first ip should be rate limited")
	}
	if !rl.Allow("192.168.1.101") {
		t.Error("second ip should be allowed")
	}
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	if rl.size() != 2 {
		t.Fatalf("size = %d, want 2", rl.size())
	}

	rl.prune(time.Now().Add(time.Second))
	if rl.size() != 0 {
		t.Errorf("size after prune = %d, want 0", rl.size())
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 10, Burst: 2, CleanupInterval: time.Hour})
	defer rl.Stop()

	middleware := rl.Middleware(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/guests", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		rec := httptest.NewRecorder()
		middleware.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/guests", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	rec := httptest.NewRecorder()
	middleware.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestAuthFailureLimiter_Lockout(t *testing.T) {
	afl := NewAuthFailureLimiter(AuthFailureLimiterConfig{
		MaxFailures:   3,
		Window:        time.Minute,
		LockoutPeriod: time.Minute,
	})
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	afl.now = func() time.Time { return now }

	ip := "192.168.1.100"
	if afl.LockedFor(ip) != 0 {
		t.Error("should not be locked initially")
	}

	if remaining := afl.RecordFailure(ip); remaining != 2 {
		t.Errorf("expected 2 remaining, got %d", remaining)
	}
	if remaining := afl.RecordFailure(ip); remaining != 1 {
		t.Errorf("expected 1 remaining, got %d", remaining)
	}
	if remaining := afl.RecordFailure(ip); remaining != -1 {
		t.Errorf("expected -1 (locked), got %d", remaining)
	}

	if d := afl.LockedFor(ip); d != time.Minute {
		t.Errorf("LockedFor = %v, want 1m", d)
	}

	now = now.Add(61 * time.Second)
	if d := afl.LockedFor(ip); d != 0 {
		t.Errorf("LockedFor after lockout = %v, want 0", d)
	}
	if remaining := afl.RecordFailure(ip); remaining != 2 {
		t.Errorf("expected a fresh window after lockout, got %d remaining", remaining)
	}
}

func TestAuthFailureLimiter_WindowExpires(t *testing.T) {
	afl := NewAuthFailureLimiter(AuthFailureLimiterConfig{
		MaxFailures:   3,
		Window:        time.Minute,
		LockoutPeriod: time.Minute,
	})
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	afl.now = func() time.Time { return now }

	afl.RecordFailure("ip")
	afl.RecordFailure("ip")
	now = now.Add(2 * time.Minute)
	if remaining := afl.RecordFailure("ip"); remaining != 2 {
		t.Errorf("expected window reset, got %d remaining", remaining)
	}
}

func TestAuthFailureLimiter_SuccessClears(t *testing.T) {
	afl := NewAuthFailureLimiter(DefaultAuthFailureLimiterConfig())

	ip := "192.168.1.100"
	afl.RecordFailure(ip)
	afl.RecordFailure(ip)
	afl.RecordSuccess(ip)

	if remaining := afl.RecordFailure(ip); remaining != 4 {
		t.Errorf("expected 4 remaining after success cleared, got %d", remaining)
	}
}

func TestAuthFailureLimiter_Middleware(t *testing.T) {
	afl := NewAuthFailureLimiter(AuthFailureLimiterConfig{
		MaxFailures:   1,
		Window:        time.Minute,
		LockoutPeriod: time.Minute,
	})
	afl.RecordFailure("192.168.1.100")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.168.1.100:5555"
	rec := httptest.NewRecorder()
	afl.Middleware(okHandler).ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}
