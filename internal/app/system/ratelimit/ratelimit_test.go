package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func TestLimiter_AllowsBurstThenBlocks(t *testing.T) {
	l := PerMinute(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("fourth request should be blocked")
	}
	if !l.Allow("5.6.7.8") {
		t.Error("other keys have their own bucket")
	}
}

func TestLimiter_Reset(t *testing.T) {
	l := PerMinute(1, time.Minute)
	defer l.Stop()

	l.Allow("k")
	if l.Allow("k") {
		t.Fatal("second request should be blocked")
	}
	l.Reset("k")
	if !l.Allow("k") {
		t.Error("reset key should be allowed again")
	}
}

func TestLimiter_SweepForgetsIdleKeys(t *testing.T) {
	l := PerMinute(5, time.Minute)
	defer l.Stop()

	l.Allow("a")
	l.Allow("b")
	l.sweep(time.Now().Add(2 * time.Minute))

	if n := l.Len(); n != 0 {
		t.Errorf("Len() after sweep = %d, want 0", n)
	}
}

func TestClientIP_IgnoresForwardingHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Real-IP", "198.51.100.4")
	if got := ClientIP(req); got != "10.0.0.9" {
		t.Errorf("ClientIP() = %q, want 10.0.0.9", got)
	}
}

func TestClientIP_RotatingForwardedForSharesBucket(t *testing.T) {
	l := PerMinute(5, time.Minute)
	defer l.Stop()

	blocked := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "192.0.2.10:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		if !l.Allow(ClientIP(req)) {
			blocked++
		}
	}
	if blocked != 45 {
		t.Errorf("blocked = %d, want 45", blocked)
	}
	if n := l.Len(); n != 1 {
		t.Errorf("Len() = %d, want 1 bucket for one peer", n)
	}
}

func TestClientIP_BehindRealIP(t *testing.T) {
	var got string
	h := middleware.RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Real-IP", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "203.0.113.7" {
		t.Errorf("ClientIP() behind RealIP = %q, want 203.0.113.7", got)
	}
}
