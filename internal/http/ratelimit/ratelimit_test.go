package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestAllowEnforcesBurst(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 2, time.Minute, nil)

	if !l.Allow("10.0.0.1") || !l.Allow("10.0.0.1") {
		t.Fatal("burst of 2 should admit two immediate requests")
	}
	if l.Allow("10.0.0.1") {
		t.Error("third immediate request should be rejected")
	}
	// A different IP has its own budget.
	if !l.Allow("10.0.0.2") {
		t.Error("unrelated IP must not share the budget")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, nil)
	handler := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
}

func TestClientIPIgnoresForwardingFromUntrustedPeer(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, []string{"10.0.0.0/8"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	if got := l.ClientIP(req); got != "192.0.2.1" {
		t.Errorf("untrusted peer must be identified by RemoteAddr, got %s", got)
	}
}

func TestClientIPHonorsForwardingFromTrustedProxy(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1, time.Minute, []string{"10.0.0.0/8"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.2.3")

	if got := l.ClientIP(req); got != "203.0.113.9" {
		t.Errorf("expected forwarded client IP, got %s", got)
	}
}
