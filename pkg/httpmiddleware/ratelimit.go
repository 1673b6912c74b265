package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// Max is the bucket size; Max tokens are refilled per Window. Non-positive
	// values fall back to 100 per minute.
	Max    int
	Window time.Duration
	// Clients bounds the number of tracked clients. Defaults to 10000.
	Clients int
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

const (
	defaultRateLimitMax    = 100
	defaultRateLimitWindow = time.Minute
)

type rateLimiter struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	if cfg.Clients <= 0 {
		cfg.Clients = 10000
	}
	if cfg.Max <= 0 {
		cfg.Max = defaultRateLimitMax
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultRateLimitWindow
	}
	return &rateLimiter{
		cfg: cfg,
		// An idle bucket is full again after one window, so forgetting it
		// after two changes nothing.
		limiters: expirable.NewLRU[string, *rate.Limiter](cfg.Clients, nil, 2*cfg.Window),
	}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if lim, ok := rl.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(rl.cfg.Window/time.Duration(rl.cfg.Max)), rl.cfg.Max)
	rl.limiters.Add(key, lim)
	return lim
}

// allow takes a token for key and reports the tokens left, or how long to
// wait when the bucket is empty.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, retryAfter time.Duration, allowed bool) {
	lim := rl.limiter(key)
	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return 0, delay, false
	}
	return max(int(lim.TokensAt(now)), 0), 0, true
}

// RateLimit rejects clients that exceed Max requests per Window with 429.
// Responses carry X-RateLimit-Limit and X-RateLimit-Remaining headers.
func RateLimit(cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, retryAfter, allowed := rl.allow(rl.cfg.KeyFunc(r), time.Now())

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Max))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
