package middleware

import "github.com/gofiber/fiber/v2"

const (
	RequestIDHeader = "X-Request-Id"
	// RequestIDKey holds the request id in fiber locals.
	RequestIDKey = "request_id"
	// StartTimeKey holds the time.Time the request entered the stack.
	StartTimeKey = "start_time"
)

type Middleware interface {
	Middleware() fiber.Handler
}

type Transport struct {
	PanicRecoverMiddleware Middleware
	RequestIDMiddleware    Middleware
	CORSMiddleware         Middleware
	SecurityMiddleware     Middleware
	MetricsMiddleware      Middleware
	AccessLogMiddleware    Middleware
	RateLimitMiddleware    Middleware
}

// RequestID returns the id assigned by the request id middleware, or "".
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDKey).(string)
	return id
}
