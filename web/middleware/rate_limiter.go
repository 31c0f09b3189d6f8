package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MessagesPerMinute int           // Max messages per session per minute
	BurstSize         int           // Allow burst of N requests
	CleanupInterval   time.Duration // How often to clean up old entries
}

type sessionLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// SessionRateLimiter manages rate limits per session
type SessionRateLimiter struct {
	config      RateLimiterConfig
	limits      map[uuid.UUID]*sessionLimiter
	mu          sync.Mutex
	logger      *zap.Logger
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewSessionRateLimiter creates a new session-based rate limiter
func NewSessionRateLimiter(config RateLimiterConfig, logger *zap.Logger) *SessionRateLimiter {
	if config.MessagesPerMinute <= 0 {
		config.MessagesPerMinute = 20
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	limiter := &SessionRateLimiter{
		config:      config,
		limits:      make(map[uuid.UUID]*sessionLimiter),
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	go limiter.cleanupRoutine()

	return limiter
}

// cleanupRoutine periodically removes stale entries
func (srl *SessionRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(srl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			srl.cleanup(time.Now())
		case <-srl.stopCleanup:
			return
		}
	}
}

// cleanup drops limiters idle for longer than the cleanup interval.
func (srl *SessionRateLimiter) cleanup(now time.Time) {
	srl.mu.Lock()
	defer srl.mu.Unlock()

	removed := 0
	for id, l := range srl.limits {
		if now.Sub(l.lastSeen) > srl.config.CleanupInterval {
			delete(srl.limits, id)
			removed++
		}
	}
	if removed > 0 {
		srl.logger.Debug("Cleaned up rate limiters", zap.Int("removed", removed), zap.Int("remaining", len(srl.limits)))
	}
}

// Stop stops the cleanup routine
func (srl *SessionRateLimiter) Stop() {
	srl.stopOnce.Do(func() { close(srl.stopCleanup) })
}

func (srl *SessionRateLimiter) limiterFor(sessionID uuid.UUID) *rate.Limiter {
	srl.mu.Lock()
	defer srl.mu.Unlock()

	l, ok := srl.limits[sessionID]
	if !ok {
		every := rate.Every(time.Minute / time.Duration(srl.config.MessagesPerMinute))
		l = &sessionLimiter{limiter: rate.NewLimiter(every, srl.config.BurstSize)}
		srl.limits[sessionID] = l
	}
	l.lastSeen = time.Now()
	return l.limiter
}

// AllowMessage checks if a message can be sent for the given session
func (srl *SessionRateLimiter) AllowMessage(sessionID uuid.UUID) bool {
	return srl.limiterFor(sessionID).Allow()
}

// Remaining returns the whole tokens left for a session.
func (srl *SessionRateLimiter) Remaining(sessionID uuid.UUID) int {
	tokens := srl.limiterFor(sessionID).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// RateLimitMiddleware creates a Gin middleware limiting requests per session.
// The session middleware must run first.
func RateLimitMiddleware(limiter *SessionRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionIDValue, exists := c.Get(SessionContextKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session not initialized"})
			return
		}
		sessionID := sessionIDValue.(uuid.UUID)

		allowed := limiter.AllowMessage(sessionID)
		limit := limiter.config.BurstSize
		remaining := limiter.Remaining(sessionID)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			logger, _ := c.Get("logger")
			if zapLogger, ok := logger.(*zap.Logger); ok {
				zapLogger.Warn("Rate limit exceeded",
					zap.String("session_id", sessionID.String()),
					zap.Int("limit", limit))
			}

			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"limit":       limit,
				"remaining":   remaining,
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}
