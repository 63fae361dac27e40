package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	visitorTTL  = 10 * time.Minute
	maxVisitors = 4096
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type visitors struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	seen  map[string]*visitor
}

func (v *visitors) limiter(ip string, now time.Time) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.seen) >= maxVisitors {
		for k, vis := range v.seen {
			if now.Sub(vis.lastSeen) > visitorTTL {
				delete(v.seen, k)
			}
		}
	}

	vis, ok := v.seen[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.seen[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter
}

// RateLimitMiddleware limits each client IP to rps requests per second.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	v := &visitors{
		rps:   rate.Limit(rps),
		burst: burst,
		seen:  make(map[string]*visitor),
	}

	return func(c *gin.Context) {
		if !v.limiter(c.ClientIP(), time.Now()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
