package router

import (
	"errors"
	"strings"

	handlers "github.com/NeuralTrust/docsifer/pkg/handlers/http"
	"github.com/NeuralTrust/docsifer/pkg/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

var (
	ErrInvalidHandlerTransport = errors.New("invalid handler transport")
)

const (
	SwaggerPath   = "/swagger.json"
	SwaggerSource = "./docs/swagger.json"
)

type apiRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
	publicURL           string
}

func NewAPIRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
	publicURL string,
) ServerRouter {
	return &apiRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
		publicURL:           strings.TrimRight(publicURL, "/"),
	}
}

func (r *apiRouter) BuildRoutes(router *fiber.App) error {
	h := r.handlerTransport
	if h.ConvertHandler == nil || h.GetStatsHandler == nil || h.GetStatsSummaryHandler == nil {
		return ErrInvalidHandlerTransport
	}
	m := r.middlewareTransport

	use(router, m.PanicRecoverMiddleware, m.RequestIDMiddleware, m.SecurityMiddleware, m.CORSMiddleware, m.MetricsMiddleware)

	router.Static(SwaggerPath, SwaggerSource)
	router.Get("/docs/*", swagger.New(swagger.Config{
		URL: r.publicURL + SwaggerPath,
	}))

	if h.GetVersionHandler != nil {
		router.Get("/version", h.GetVersionHandler.Handle)
	}
	if h.PlaygroundHandler != nil {
		router.Get("/", h.PlaygroundHandler.Handle)
	}

	v1 := router.Group("/v1")
	{
		use(v1, m.AccessLogMiddleware)

		convert := []fiber.Handler{}
		if m.RateLimitMiddleware != nil {
			convert = append(convert, m.RateLimitMiddleware.Middleware())
		}
		v1.Post("/convert", append(convert, h.ConvertHandler.Handle)...)

		stats := v1.Group("/stats")
		{
			stats.Get("", h.GetStatsHandler.Handle)
			stats.Get("/summary", h.GetStatsSummaryHandler.Handle)
		}
	}
	return nil
}

func use(router fiber.Router, middlewares ...middleware.Middleware) {
	for _, mw := range middlewares {
		if mw != nil {
			router.Use(mw.Middleware())
		}
	}
}
