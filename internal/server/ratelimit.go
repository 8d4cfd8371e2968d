package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const limiterIdleCutoff = 10 * time.Minute

// mutationLimiter rate limits state-changing requests per attendee using a
// token bucket per key via golang.org/x/time/rate.
type mutationLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newMutationLimiter(perMinute int) *mutationLimiter {
	return &mutationLimiter{
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(float64(perMinute) / 60.0),
		burst:     perMinute,
		cleanupAt: time.Now().Add(5 * time.Minute),
	}
}

func (l *mutationLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.cleanupAt) {
		l.cleanup()
		l.cleanupAt = time.Now().Add(5 * time.Minute)
	}

	entry, exists := l.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}

	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// cleanup removes limiters idle longer than the cutoff. Must hold mu.
func (l *mutationLimiter) cleanup() {
	cutoff := time.Now().Add(-limiterIdleCutoff)
	for key, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
}

// rateLimit guards mutation endpoints. Keyed by attendee when signed in,
// falling back to the client IP.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key, _ := c.Get("attendeeID").(string)
		if key == "" {
			key = c.RealIP()
		}
		if !s.limiter.allow(key) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, slow down")
		}
		return next(c)
	}
}
