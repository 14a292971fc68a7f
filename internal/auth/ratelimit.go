package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"voicecontrol/internal/observability"
)

// RateLimiter admits at most limit requests per key within a trailing
// window. Entries are pruned lazily on each check; state lives in process
// memory only, which is fine for a single-node deployment.
type RateLimiter struct {
	mu      sync.Mutex
	scope   string
	limit   int
	window  time.Duration
	hits    map[string][]time.Time
	maxKeys int
}

func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 100
	}
	if window <= 0 {
		window = time.Minute
	}

	return &RateLimiter{
		scope:   scope,
		limit:   limit,
		window:  window,
		hits:    make(map[string][]time.Time),
		maxKeys: 5000,
	}
}

// Allow reports whether a request for key is admitted at now, how many more
// requests the window would still take, and when the window resets. The new
// timestamp is recorded only on admission.
func (l *RateLimiter) Allow(key string, now time.Time) (bool, int, time.Time) {
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hits[key]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) >= l.limit {
		l.hits[key] = filtered
		return false, 0, filtered[0].Add(l.window)
	}

	filtered = append(filtered, now)
	l.hits[key] = filtered
	l.evictStale(threshold)

	return true, l.limit - len(filtered), filtered[0].Add(l.window)
}

// Reset clears a key's history (administrative override).
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.hits, key)
}

// Middleware rejects over-limit requests with 429 and always reports window
// state through X-RateLimit headers so clients can back off early.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		allowed, remaining, resetAt := l.Allow(ClientIP(r), now)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := resetAt.Sub(now)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			observability.RateLimitRejections.WithLabelValues(l.scope).Inc()
			writeError(w, http.StatusTooManyRequests, "too many requests, retry later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// evictStale caps memory by dropping keys whose newest hit left the window.
// Caller holds the mutex.
func (l *RateLimiter) evictStale(threshold time.Time) {
	if len(l.hits) <= l.maxKeys {
		return
	}
	for key, hits := range l.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(threshold) {
			delete(l.hits, key)
		}
	}
}
