package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Conversion
	ConvertHandler Handler

	// Analytics
	GetStatsHandler        Handler
	GetStatsSummaryHandler Handler

	// Misc
	GetVersionHandler Handler
	PlaygroundHandler Handler
}
