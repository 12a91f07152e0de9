package server

import (
	"context"
	"fmt"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/config"
	handlers "github.com/NeuralTrust/docsifer/pkg/handlers/http"
	"github.com/NeuralTrust/docsifer/pkg/middleware"
	"github.com/NeuralTrust/docsifer/pkg/server/router"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 30 * time.Second

type (
	APIServerDI struct {
		MiddlewareTransport middleware.Transport
		HandlerTransport    handlers.HandlerTransport
		Config              *config.Config
		Logger              *logrus.Logger
	}
	APIServer struct {
		*BaseServer
		middlewareTransport middleware.Transport
		handlerTransport    handlers.HandlerTransport
	}
)

func NewAPIServer(di APIServerDI) *APIServer {
	s := &APIServer{
		BaseServer:          NewBaseServer(di.Config, di.Logger),
		middlewareTransport: di.MiddlewareTransport,
		handlerTransport:    di.HandlerTransport,
	}
	s.setupHealthCheck()
	s.WithRouters(router.NewAPIRouter(&s.middlewareTransport, s.handlerTransport, di.Config.Server.PublicURL))
	return s
}

func (s *APIServer) Run() error {
	s.setupMetricsEndpoint()
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.Logger.WithField("addr", addr).Info("starting docsifer server")
	return s.Router.Listen(addr)
}

func (s *APIServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.shutdownMetrics()
	return s.Router.ShutdownWithContext(ctx)
}
