package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/invoice-service/internal/config"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/sirupsen/logrus"
)

const principalKey = "principal"

// AuthMiddleware exige un token bearer. El parámetro ?token= sirve como
// alternativa para enlaces de descarga abiertos desde el navegador.
func (api *API) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("No token provided"))
			return
		}

		principal, err := api.auth.ParseToken(token)
		if err != nil {
			api.logger.WithError(err).Debug("Rejected bearer token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid token"))
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func principalFrom(c *gin.Context) models.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(models.Principal); ok {
			return p
		}
	}
	return models.Principal{}
}

// WindowCounter cuenta peticiones en una ventana fija (Redis en producción)
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter aplica una ventana fija de un minuto por dueño
type RateLimiter struct {
	counter WindowCounter
	limit   int64
	window  time.Duration
	logger  *logrus.Logger
	now     func() time.Time
}

// NewRateLimiter crea el limitador; el límite efectivo es Default + Burst
func NewRateLimiter(counter WindowCounter, cfg config.RateLimitConfig, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		limit:   int64(cfg.Default + cfg.Burst),
		window:  time.Minute,
		logger:  logger,
		now:     time.Now,
	}
}

// Middleware rechaza con 429 al superar el límite. Si Redis falla deja pasar.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := principalFrom(c)
		windowStart := l.now().Truncate(l.window)
		key := fmt.Sprintf("ratelimit:%s:%d", principal.OwnerID, windowStart.Unix())

		count, err := l.counter.IncrWindow(c.Request.Context(), key, l.window)
		if err != nil {
			l.logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		remaining := l.limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > l.limit {
			retryAfter := windowStart.Add(l.window).Sub(l.now())
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewRateLimitedError("Too many requests"))
			return
		}
		c.Next()
	}
}
