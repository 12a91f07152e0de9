package middleware

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type panicRecoverMiddleware struct {
	logger *logrus.Logger
}

func NewPanicRecoverMiddleware(logger *logrus.Logger) Middleware {
	return &panicRecoverMiddleware{logger: logger}
}

// Middleware turns a panic anywhere below it into a 500. The JSON body is
// only written when the handler has not produced a response yet.
func (m *panicRecoverMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			m.logger.WithFields(logrus.Fields{
				"error":      r,
				"method":     c.Method(),
				"path":       c.Path(),
				"request_id": RequestID(c),
				"stack":      string(debug.Stack()),
			}).Error("panic recovered while handling request")

			if len(c.Response().Body()) == 0 {
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Internal server error",
				})
			}
		}()

		return c.Next()
	}
}
