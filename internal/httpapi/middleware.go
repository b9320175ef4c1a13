package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MarkoPoloResearchLab/testimonial_svc/internal/apperr"
)

const (
	defaultRateWindow           = 30 * time.Second
	defaultMaxRequestsPerWindow = 6
	idleWindowsBeforeEviction   = 10
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// RateLimiter keeps a token bucket per client IP. A client may spend maxPerWindow requests at once
// and regains the full allowance over one window.
type RateLimiter struct {
	limit       rate.Limit
	burst       int
	idleTimeout time.Duration
	visitors    map[string]*visitor
	lastSweep   time.Time
	mutex       sync.Mutex
	clock       func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(window time.Duration, maxPerWindow int) *RateLimiter {
	if window <= 0 {
		window = defaultRateWindow
	}
	if maxPerWindow <= 0 {
		maxPerWindow = defaultMaxRequestsPerWindow
	}
	return &RateLimiter{
		limit:       rate.Every(window / time.Duration(maxPerWindow)),
		burst:       maxPerWindow,
		idleTimeout: window * idleWindowsBeforeEviction,
		visitors:    make(map[string]*visitor),
		clock:       time.Now,
	}
}

// Allow records one request from ip and reports whether its bucket had a token left.
func (limiter *RateLimiter) Allow(ip string) bool {
	now := limiter.clock()

	limiter.mutex.Lock()
	defer limiter.mutex.Unlock()

	if now.Sub(limiter.lastSweep) > limiter.idleTimeout {
		for key, entry := range limiter.visitors {
			if now.Sub(entry.lastSeen) > limiter.idleTimeout {
				delete(limiter.visitors, key)
			}
		}
		limiter.lastSweep = now
	}

	entry, found := limiter.visitors[ip]
	if !found {
		entry = &visitor{limiter: rate.NewLimiter(limiter.limit, limiter.burst)}
		limiter.visitors[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Middleware answers 429 once a client exceeds its window.
func (limiter *RateLimiter) Middleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		if !limiter.Allow(context.ClientIP()) {
			context.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{jsonKeyError: apperr.CodeRateLimited})
			return
		}
		context.Next()
	}
}
