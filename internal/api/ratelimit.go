package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// clientRate is one caller's token bucket plus its last activity, so idle
// entries can be swept.
type clientRate struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter tracks token buckets per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientRate
	limit   rate.Limit
	burst   int
	logger  *zap.Logger
}

func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	cl, ok := rl.clients[ip]
	if !ok {
		cl = &clientRate{bucket: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	rl.mu.Unlock()

	return cl.bucket.Allow()
}

func (rl *rateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.clients, ip)
		}
	}
}

// RateLimiter returns a Gin middleware enforcing a per-client-IP token
// bucket: rps steady-state requests per second with the given burst.
// Rejections use the handlers' error shape and are counted in the ledger
// metrics family. The idle-entry sweeper exits when ctx is cancelled.
func RateLimiter(ctx context.Context, rps, burst int, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	rl := &rateLimiter{
		clients: make(map[string]*clientRate),
		limit:   rate.Limit(rps),
		burst:   burst,
		logger:  logger,
	}

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.sweep(now)
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.allow(ip, time.Now()) {
			RecordRateLimited()
			rl.logger.Debug("rate limit exceeded", zap.String("client_ip", ip))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
