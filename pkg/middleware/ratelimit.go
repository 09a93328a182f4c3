package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/utafrali/quickbite-auth/pkg/errors"
	"github.com/utafrali/quickbite-auth/pkg/httputil"
)

// RateLimitConfig configures the per-IP limiter. Requests are allowed per
// Window and refill evenly across it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration

	// SkipSuccessful charges only requests answered with 400 or above, so
	// only failed attempts count against the client.
	SkipSuccessful bool

	// TrustForwarded keys clients by X-Forwarded-For / X-Real-IP. Enable it
	// only behind a proxy that overwrites those headers.
	TrustForwarded bool
}

// DefaultAuthRateLimitConfig allows five failed attempts per 15 minutes.
func DefaultAuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Requests:       5,
		Window:         15 * time.Minute,
		SkipSuccessful: true,
	}
}

// visitor tracks a rate limiter per client IP.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore holds per-IP limiters. Idle entries are evicted lazily once
// per window.
type visitorStore struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	nowFunc   func() time.Time
}

func newVisitorStore(cfg RateLimitConfig, now func() time.Time) *visitorStore {
	return &visitorStore{
		visitors:  make(map[string]*visitor),
		limit:     rate.Every(cfg.Window / time.Duration(cfg.Requests)),
		burst:     cfg.Requests,
		ttl:       cfg.Window,
		lastSweep: now(),
		nowFunc:   now,
	}
}

// getVisitor returns (or creates) the limiter for ip.
func (s *visitorStore) getVisitor(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	if now.Sub(s.lastSweep) > s.ttl {
		s.sweep(now)
	}

	v, ok := s.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// sweep drops visitors idle for longer than the window; their bucket is
// full again by then. Callers hold s.mu.
func (s *visitorStore) sweep(now time.Time) {
	for ip, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, ip)
		}
	}
	s.lastSweep = now
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// RateLimit returns middleware enforcing a per-IP token bucket. Rejected
// requests get 429 RATE_LIMITED. A non-positive Requests or Window disables
// limiting.
func RateLimit(cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(cfg, logger, time.Now)
}

func rateLimit(cfg RateLimitConfig, logger *slog.Logger, now func() time.Time) func(http.Handler) http.Handler {
	if cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	store := newVisitorStore(cfg, now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, cfg.TrustForwarded)
			limiter := store.getVisitor(ip)

			at := now()
			var allowed bool
			if cfg.SkipSuccessful {
				allowed = limiter.TokensAt(at) >= 1
			} else {
				allowed = limiter.AllowN(at, 1)
			}
			if !allowed {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteError(w, r, apperrors.TooManyRequests("too many attempts, please try again later"), logger)
				return
			}

			if !cfg.SkipSuccessful {
				next.ServeHTTP(w, r)
				return
			}

			// Charged after the fact so successful requests cost nothing.
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)
			if rec.status >= http.StatusBadRequest {
				limiter.AllowN(now(), 1)
			}
		})
	}
}

// clientIP returns the caller's address. Forwarding headers are consulted
// only when trusted.
func clientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip.String()
			}
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
