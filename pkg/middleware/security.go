package middleware

import "github.com/gofiber/fiber/v2"

type securityMiddleware struct{}

// NewSecurityMiddleware sets the static response headers served with every
// API response and the playground page.
func NewSecurityMiddleware() Middleware {
	return &securityMiddleware{}
}

func (m *securityMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		c.Set(fiber.HeaderXFrameOptions, "SAMEORIGIN")
		c.Set(fiber.HeaderReferrerPolicy, "no-referrer")
		return c.Next()
	}
}
