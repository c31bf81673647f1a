package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/services"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	actorKey        = "actor"
)

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		fields := []zap.Field{
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor, ok := c.Get(actorKey); ok {
			fields = append(fields, zap.String("user_id", actor.(services.Actor).ID))
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("request completed", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("request completed", fields...)
		default:
			s.logger.Info("request completed", fields...)
		}

		if s.metrics != nil && s.config.EnableMetrics {
			s.metrics.IncrementCounter("http_requests_total", map[string]string{
				"method": c.Request.Method,
				"route":  route,
				"status": strconv.Itoa(status),
			})
			s.metrics.ObserveLatency(c.Request.Method+" "+route, latency)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("request_id", c.GetString(requestIDKey)),
					zap.Stack("stack"))
				s.respondError(c, http.StatusInternalServerError, "Internal server error", "Something went wrong")
				c.Abort()
			}
		}()
		c.Next()
	}
}

// rateLimiter keeps a sliding log of request times per client IP.
type rateLimiter struct {
	limit   int
	window  time.Duration
	clients map[string][]time.Time
	mutex   sync.Mutex
	now     func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// allow records a request for key and reports whether it fits the window.
func (rl *rateLimiter) allow(key string) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	requests := rl.clients[key]
	valid := requests[:0]
	for _, t := range requests {
		if now.Sub(t) < rl.window {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.limit {
		rl.clients[key] = valid
		return false
	}
	rl.clients[key] = append(valid, now)
	return true
}

func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.allow(c.ClientIP()) {
			s.respondError(c, http.StatusTooManyRequests, "Rate limit exceeded", "Too many requests, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

// authenticate resolves the bearer token into an Actor stored on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			s.respondError(c, http.StatusUnauthorized, "Authentication required", "Access denied. No token provided")
			c.Abort()
			return
		}

		actor, err := s.services.Users.Authenticate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnauthenticated) {
				s.respondError(c, http.StatusUnauthorized, "Authentication required", "Invalid or expired token")
			} else {
				s.handleError(c, err)
			}
			c.Abort()
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireReviewer rejects callers below the configured reviewer role before
// any handler runs. Services still enforce their own stricter checks.
func (s *Server) requireReviewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.services.Policy.CanReview(actorFrom(c)) {
			s.respondError(c, http.StatusForbidden, "Insufficient permissions", "This action requires the "+s.services.Policy.ReviewerRole+" role or higher")
			c.Abort()
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) services.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(services.Actor); ok {
			return actor
		}
	}
	return services.Actor{}
}
