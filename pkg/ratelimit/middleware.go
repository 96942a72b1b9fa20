package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/tendant/proxy-admin-auth/pkg/audit"
	apperrors "github.com/tendant/proxy-admin-auth/pkg/errors"
	"github.com/tendant/proxy-admin-auth/pkg/metrics"
	"golang.org/x/time/rate"
)

// IPLimiter throttles requests per client IP with a token bucket per address.
type IPLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu       sync.Mutex
	limiters map[string]*ipEntry
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPLimiter allows perMinute requests per IP with the given burst.
// Addresses idle for idleTTL are forgotten on the next sweep.
func NewIPLimiter(perMinute, burst int, idleTTL time.Duration) *IPLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &IPLimiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
		idleTTL:  idleTTL,
		limiters: make(map[string]*ipEntry),
	}
}

func (l *IPLimiter) reserve(ip string) (bool, time.Duration) {
	l.mu.Lock()
	now := time.Now()
	e, ok := l.limiters[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = e
	}
	e.lastSeen = now
	l.sweep(now)
	l.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// sweep drops idle entries. Caller holds mu.
func (l *IPLimiter) sweep(now time.Time) {
	if l.idleTTL <= 0 {
		return
	}
	for ip, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.limiters, ip)
		}
	}
}

// Handler rejects requests over the per-IP rate with 429 and Retry-After.
func (l *IPLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := audit.ClientIP(r)
		ok, retryAfter := l.reserve(ip)
		if !ok {
			slog.Warn("Rate limit exceeded", "limiter", "login_ip", "ip", ip, "path", r.URL.Path)
			metrics.RateLimitedTotal.WithLabelValues("login_ip").Inc()
			WriteTooManyRequests(w, r, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteTooManyRequests writes the shared 429 payload.
func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	apperrors.Render(w, r, apperrors.RateLimited(RetryAfterSeconds(retryAfter)))
}

// RetryAfterSeconds rounds a wait up to whole seconds, minimum one.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
