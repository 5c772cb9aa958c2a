package middlewares

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/onpointkonceptz/goldbond/utils"
	"golang.org/x/time/rate"
)

// RateLimiter is a simple fixed-window counter per client IP.
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		rl.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-rl.window)

		var recent []time.Time
		for _, t := range rl.requests[ip] {
			if t.After(cutoff) {
				recent = append(recent, t)
			}
		}

		if len(recent) >= rl.limit {
			rl.mu.Unlock()
			utils.RespondError(c, http.StatusTooManyRequests, errors.New("too many requests, please try again later"))
			c.Abort()
			return
		}

		rl.requests[ip] = append(recent, now)
		rl.mu.Unlock()

		c.Next()
	}
}

// NewStrictRateLimiter guards credential endpoints (login/register) with a
// shared token bucket of 5 requests per minute.
func NewStrictRateLimiter() gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Every(time.Minute/5), 5)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			utils.RespondError(c, http.StatusTooManyRequests, errors.New("too many attempts, please try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
