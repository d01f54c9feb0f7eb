package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AnTengye/topicdetect/pkg/logger"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	lastSweep time.Time
	rate      int           // requests per window, <= 0 = unlimited
	window    time.Duration // time window
}

// NewRateLimiter creates a limiter allowing requests per window per client.
// A non-positive requests value allows everything.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests < 0 {
		requests = 0
	}
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		lastSweep: time.Now(),
		rate:      requests,
		window:    window,
	}
}

// Allow reports whether clientIP may make another request now
func (l *RateLimiter) Allow(clientIP string) bool {
	if l.rate <= 0 {
		return true
	}

	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
	}
	entry, ok := l.limiters[clientIP]
	if !ok {
		entry = &clientLimiter{
			limiter: rate.NewLimiter(rate.Every(l.window/time.Duration(l.rate)), l.rate),
		}
		l.limiters[clientIP] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.Allow()
}

// sweep drops clients idle for longer than a window. Their buckets would be
// full again anyway. Must be called with lock held
func (l *RateLimiter) sweep(now time.Time) {
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.window {
			delete(l.limiters, ip)
		}
	}
	l.lastSweep = now
}

// RateLimit middleware limits requests per IP. A non-positive rate disables it.
func RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	if requests <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(requests, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			logger.Warn(c.Request.Context(), "rate limit exceeded",
				"client_ip", clientIP,
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error_message": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
