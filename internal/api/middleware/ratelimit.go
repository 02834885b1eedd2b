package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter decides whether a keyed request may proceed. It returns the
// remaining allowance and when the allowance resets.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, int, time.Time, error)
}

// LocalLimiter is an in-process token bucket per key, used when Redis is
// not configured.
type LocalLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketTTL = 10 * time.Minute

// NewLocalLimiter allows requestsPerMinute on average with bursts of up to
// burst extra requests.
func NewLocalLimiter(requestsPerMinute, burst int) *LocalLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &LocalLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60),
		burst:   requestsPerMinute/60 + burst + 1,
		buckets: make(map[string]*bucket),
	}
}

func (l *LocalLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
		if len(l.buckets)%1024 == 0 {
			l.evictLocked(now)
		}
	}
	b.lastSeen = now
	l.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	var reset time.Time
	if deficit := float64(l.burst) - tokens; deficit > 0 {
		reset = now.Add(time.Duration(deficit / float64(l.limit) * float64(time.Second)))
	} else {
		reset = now
	}
	return allowed, remaining, reset, nil
}

func (l *LocalLimiter) evictLocked(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > bucketTTL {
			delete(l.buckets, key)
		}
	}
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting based on the authenticated operator
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operatorID, ok := GetOperatorID(r.Context())
		if !ok {
			response.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		allowed, remaining, resetTime, err := m.limiter.Allow(r.Context(), operatorID.String())
		if err != nil {
			log.Warn().Err(err).Msg("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", resetTime.UTC().Format(time.RFC3339))

		if !allowed {
			response.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
