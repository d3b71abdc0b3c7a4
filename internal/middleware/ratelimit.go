package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter is a fixed-window limiter keyed by client IP. It fronts the
// auth routes only, so process-local state is fine: the limit holds per
// instance, not across a fleet.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	length  time.Duration
	now     func() time.Time
}

type window struct {
	started time.Time
	count   int
}

func NewRateLimiter(limit int, length time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		length:  length,
		now:     time.Now,
	}
	go rl.evictLoop()
	return rl
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.length)
	defer ticker.Stop()
	for range ticker.C {
		rl.mu.Lock()
		for key, w := range rl.windows {
			if rl.now().Sub(w.started) > rl.length {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// clientKey strips the port so one client maps to one bucket instead of one
// per ephemeral source port. RealIP runs ahead of this middleware and may
// have already reduced RemoteAddr to a bare IP.
func clientKey(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// allow counts the request against the client's current window. When the
// request is over the limit it returns the time left until the window rolls.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.started) >= rl.length {
		rl.windows[key] = &window{started: now, count: 1}
		return true, 0
	}

	w.count++
	if w.count > rl.limit {
		return false, w.started.Add(rl.length).Sub(now)
	}
	return true, 0
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, retryIn := rl.allow(clientKey(r.RemoteAddr))
		if !ok {
			seconds := int(retryIn.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Try again shortly.", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
