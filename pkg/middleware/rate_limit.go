package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/config"
	"github.com/NeuralTrust/docsifer/pkg/infra/cache"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type rateLimitMiddleware struct {
	logger   *logrus.Logger
	limit    rate.Limit
	burst    int
	limiters *cache.TTLMap
}

// NewRateLimitMiddleware keeps one token bucket per client IP. Buckets idle
// for longer than cfg.TTL are dropped. A non-positive RPS disables limiting.
func NewRateLimitMiddleware(logger *logrus.Logger, cfg config.RateLimitConfig) Middleware {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int(math.Max(1, math.Ceil(cfg.RPS)))
	}
	m := &rateLimitMiddleware{
		logger:   logger,
		limit:    rate.Limit(cfg.RPS),
		burst:    burst,
		limiters: cache.NewTTLMap(ttl),
	}
	if m.limit > 0 {
		go m.sweepLoop(ttl)
	}
	return m
}

func (m *rateLimitMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.limit <= 0 {
			return c.Next()
		}

		ip := c.IP()
		limiter, ok := m.limiters.GetOrSet(ip, func() interface{} {
			return rate.NewLimiter(m.limit, m.burst)
		}).(*rate.Limiter)
		if !ok {
			return c.Next()
		}

		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			m.logger.WithFields(logrus.Fields{
				"ip":         ip,
				"path":       c.Path(),
				"request_id": RequestID(c),
			}).Warn("rate limit exceeded")
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests",
			})
		}
		return c.Next()
	}
}

func (m *rateLimitMiddleware) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		if n := m.limiters.Sweep(); n > 0 {
			m.logger.WithField("removed", n).Debug("expired rate limit buckets swept")
		}
	}
}
