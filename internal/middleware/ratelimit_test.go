package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(limit int, length time.Duration) (*RateLimiter, *time.Time) {
	clock := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     func() time.Time { return clock },
	}
	return rl, &clock
}

func hit(rl *RateLimiter, remoteAddr string) *httptest.ResponseRecorder {
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if rr := hit(rl, "203.0.113.9:50211"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
		}
	}

	rr := hit(rl, "203.0.113.9:50211")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the limit, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("expected a Retry-After header on the 429")
	}
}

func TestRateLimiter_WindowRolls(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Minute)

	if rr := hit(rl, "203.0.113.9:50211"); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}
	if rr := hit(rl, "203.0.113.9:50211"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request in window: expected 429, got %d", rr.Code)
	}

	*clock = clock.Add(time.Minute)
	if rr := hit(rl, "203.0.113.9:50211"); rr.Code != http.StatusOK {
		t.Fatalf("request in fresh window: expected 200, got %d", rr.Code)
	}
}

func TestRateLimiter_KeyIgnoresSourcePort(t *testing.T) {
	rl, _ := newTestLimiter(1, time.Minute)

	if rr := hit(rl, "203.0.113.9:50211"); rr.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rr.Code)
	}
	// Same client on a new connection must share the bucket.
	if rr := hit(rl, "203.0.113.9:50999"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("same IP, different port: expected 429, got %d", rr.Code)
	}
	// A different client is unaffected.
	if rr := hit(rl, "198.51.100.4:40000"); rr.Code != http.StatusOK {
		t.Fatalf("different IP: expected 200, got %d", rr.Code)
	}
}
