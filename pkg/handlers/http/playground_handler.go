package http

import (
	_ "embed"

	"github.com/gofiber/fiber/v2"
)

//go:embed playground/index.html
var playgroundPage []byte

type playgroundHandler struct{}

// NewPlaygroundHandler serves the single-page browser client for /v1/convert
// and /v1/stats/summary.
func NewPlaygroundHandler() Handler {
	return &playgroundHandler{}
}

func (h *playgroundHandler) Handle(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(playgroundPage)
}
