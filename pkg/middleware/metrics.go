package middleware

import (
	"strconv"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
)

type metricsMiddleware struct{}

func NewMetricsMiddleware() Middleware {
	return &metricsMiddleware{}
}

// Middleware records request counts and latency by route template, so
// "/docs/*" stays one series no matter which asset is fetched.
func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start, ok := c.Locals(StartTimeKey).(time.Time)
		if !ok {
			start = time.Now()
		}

		err := c.Next()

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		prometheus.RequestTotal.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
		if prometheus.Config.EnableLatency {
			prometheus.RequestLatency.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		}
		return err
	}
}
