package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/metrics"
)

// RateLimiter keeps a token bucket per client IP.
type RateLimiter struct {
	requests int
	window   time.Duration
	metrics  *metrics.Metrics

	mu       sync.Mutex
	visitors map[string]*rate.Limiter
}

// NewRateLimiter allows a burst of requests per client, refilling one
// request every window.
func NewRateLimiter(requests int, window time.Duration, m *metrics.Metrics) *RateLimiter {
	if requests <= 0 {
		requests = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		requests: requests,
		window:   window,
		metrics:  m,
		visitors: make(map[string]*rate.Limiter),
	}
}

func (l *RateLimiter) getOrCreate(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.visitors[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(l.window), l.requests)
		l.visitors[ip] = limiter
	}
	return limiter
}

// Reset forgets every client.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.visitors = make(map[string]*rate.Limiter)
}

// clientIP strips the port from the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware rejects requests beyond the client's budget.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiter := l.getOrCreate(ip)

		if !limiter.Allow() {
			if l.metrics != nil {
				l.metrics.RateLimitHits.WithLabelValues(ip).Inc()
			}

			retryAfter := int(l.window.Seconds())
			errResp := errors.NewRateLimitError(GetRequestID(r.Context()), retryAfter)
			errResp.Details["limit"] = int64(l.requests)
			errResp.Details["window"] = l.window.String()

			errors.WriteError(w, errResp)
			return
		}

		next.ServeHTTP(w, r)
	})
}
