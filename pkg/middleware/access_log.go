package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type accessLogMiddleware struct {
	logger *logrus.Logger
	prefix string
}

// NewAccessLogMiddleware logs one line per request whose path starts with
// prefix. Health and metrics checks stay out of the log.
func NewAccessLogMiddleware(logger *logrus.Logger, prefix string) Middleware {
	return &accessLogMiddleware{logger: logger, prefix: prefix}
}

func (m *accessLogMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !strings.HasPrefix(c.Path(), m.prefix) {
			return c.Next()
		}
		start, ok := c.Locals(StartTimeKey).(time.Time)
		if !ok {
			start = time.Now()
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		entry := m.logger.WithFields(logrus.Fields{
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.IP(),
			"request_id": RequestID(c),
		})
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request completed")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
		return err
	}
}
