// Package ratelimit guards the JSON API against over-eager pollers.
package ratelimit

import (
	"net/http"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket shared by every API request.
type Limiter struct {
	underlyingLimiter *rate.Limiter
}

// NewLimiter creates a limiter allowing perSecond requests with the given burst.
// A burst below one is raised to one.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		underlyingLimiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Allow reports whether one request may proceed now.
func (l *Limiter) Allow() bool {
	return l.underlyingLimiter.Allow()
}

// Middleware rejects requests with 429 once the bucket is empty.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
