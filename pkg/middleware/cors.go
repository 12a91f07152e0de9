package middleware

import (
	"strings"

	"github.com/NeuralTrust/docsifer/pkg/config"
	"github.com/gofiber/fiber/v2"
)

type corsMiddleware struct {
	allowOrigins     []string
	allowMethods     []string
	allowCredentials bool
	exposeHeaders    []string
	maxAge           string
}

func NewCORSMiddleware(cfg config.CORSConfig) Middleware {
	return &corsMiddleware{
		allowOrigins:     cfg.AllowOrigins,
		allowMethods:     cfg.AllowMethods,
		allowCredentials: cfg.AllowCredentials,
		exposeHeaders:    cfg.ExposeHeaders,
		maxAge:           cfg.MaxAge,
	}
}

func (m *corsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" || !m.originAllowed(origin) {
			return c.Next()
		}

		c.Vary(fiber.HeaderOrigin)
		switch {
		case m.allowCredentials:
			// A wildcard is not valid together with credentials.
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
		case hasStar(m.allowOrigins):
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		default:
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		}
		if len(m.exposeHeaders) > 0 {
			c.Set(fiber.HeaderAccessControlExposeHeaders, strings.Join(m.exposeHeaders, ", "))
		}

		if c.Method() != fiber.MethodOptions || c.Get(fiber.HeaderAccessControlRequestMethod) == "" {
			return c.Next()
		}

		// Preflight.
		c.Set(fiber.HeaderAccessControlAllowMethods, strings.Join(m.allowMethods, ", "))
		if reqHeaders := c.Get(fiber.HeaderAccessControlRequestHeaders); reqHeaders != "" {
			c.Set(fiber.HeaderAccessControlAllowHeaders, reqHeaders)
		} else {
			c.Set(fiber.HeaderAccessControlAllowHeaders, fiber.HeaderContentType)
		}
		if m.maxAge != "" {
			c.Set(fiber.HeaderAccessControlMaxAge, m.maxAge)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (m *corsMiddleware) originAllowed(origin string) bool {
	for _, o := range m.allowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func hasStar(arr []string) bool {
	for _, v := range arr {
		if v == "*" {
			return true
		}
	}
	return false
}
