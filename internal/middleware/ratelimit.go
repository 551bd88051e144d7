package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/intervue/backend/pkg/response"
)

// RateLimit allows each user (or client IP when anonymous) rps requests per
// second with the given burst.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*visitor)
	)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := GetUserID(c); ok {
			key = id.String()
		}
		now := time.Now()
		mu.Lock()
		if len(limiters) >= maxVisitors {
			for k, v := range limiters {
				if now.Sub(v.lastSeen) > visitorIdle {
					delete(limiters, k)
				}
			}
		}
		v, ok := limiters[key]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[key] = v
		}
		v.lastSeen = now
		allowed := v.limiter.Allow()
		mu.Unlock()

		if !allowed {
			response.TooManyRequests(c, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

const (
	maxVisitors = 4096
	visitorIdle = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}
