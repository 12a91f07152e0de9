package dependency_container

import (
	"github.com/NeuralTrust/docsifer/pkg/app/analytics"
	"github.com/NeuralTrust/docsifer/pkg/app/convert"
	"github.com/NeuralTrust/docsifer/pkg/config"
	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	handlers "github.com/NeuralTrust/docsifer/pkg/handlers/http"
	"github.com/NeuralTrust/docsifer/pkg/infra/cache"
	"github.com/NeuralTrust/docsifer/pkg/infra/llm"
	"github.com/NeuralTrust/docsifer/pkg/infra/markitdown"
	"github.com/NeuralTrust/docsifer/pkg/infra/repository"
	"github.com/NeuralTrust/docsifer/pkg/infra/tokenizer"
	"github.com/NeuralTrust/docsifer/pkg/middleware"
	"github.com/sirupsen/logrus"
)

type Container struct {
	Cache               cache.Client
	StatsRepository     stats.Repository
	Aggregator          analytics.Aggregator
	LLMProvider         llm.Provider
	Counter             tokenizer.Counter
	Engine              markitdown.FileConverter
	Converter           convert.Converter
	HandlerTransport    handlers.HandlerTransport
	MiddlewareTransport middleware.Transport
}

type ContainerDI struct {
	Cfg    *config.Config
	Logger *logrus.Logger
	// Cache overrides the redis client built from Cfg.Redis, mostly for tests.
	Cache cache.Client
}

func NewContainer(di ContainerDI) (*Container, error) {
	cfg := di.Cfg
	logger := di.Logger

	cacheClient := di.Cache
	if cacheClient == nil && cfg.Redis.Enabled {
		c, err := cache.NewClient(cache.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS:      cfg.Redis.TLS,
		}, logger)
		if err != nil {
			logger.WithError(err).Error("redis unavailable, analytics will be kept in memory only")
		} else {
			cacheClient = c
		}
	}

	var statsRepository stats.Repository
	if cacheClient != nil {
		statsRepository = repository.NewRedisStatsRepository(cacheClient, logger)
	} else {
		statsRepository = repository.NewMemoryStatsRepository()
	}

	aggregator := analytics.NewAggregator(statsRepository, analytics.Config{
		Label:        cfg.Analytics.Label,
		SyncInterval: cfg.Analytics.SyncInterval,
		MaxRetries:   cfg.Analytics.MaxRetries,
		Workers:      cfg.Analytics.Workers,
		QueueSize:    cfg.Analytics.QueueSize,
	}, logger)

	llmProvider := llm.NewProvider(llm.Config{
		DefaultBaseURL:     cfg.LLM.DefaultBaseURL,
		DefaultModel:       cfg.LLM.DefaultModel,
		TranscriptionModel: cfg.LLM.TranscriptionModel,
		ImagePrompt:        cfg.LLM.ImagePrompt,
		Timeout:            cfg.LLM.Timeout,
		MaxRetries:         cfg.LLM.MaxRetries,
		BreakerTimeout:     cfg.LLM.BreakerTimeout,
		BreakerMaxFailures: cfg.LLM.BreakerMaxFailures,
		ClientTTL:          cfg.LLM.ClientTTL,
		MaxConnsPerHost:    cfg.LLM.MaxConnsPerHost,
		InsecureSkipVerify: cfg.LLM.InsecureSkipVerify,
	}, nil, logger)

	counter := tokenizer.NewCounter(cfg.Converter.TokenModel, logger)
	engine := newEngine(cfg.Converter, logger)

	converter := convert.NewConverter(logger, engine, llmProvider, counter, convert.Config{
		LocalRoot: cfg.Converter.LocalRoot,
		Timeout:   cfg.Converter.Timeout,
	})

	handlerTransport := handlers.HandlerTransport{
		ConvertHandler:         handlers.NewConvertHandler(logger, converter, aggregator),
		GetStatsHandler:        handlers.NewGetStatsHandler(logger, aggregator),
		GetStatsSummaryHandler: handlers.NewGetStatsSummaryHandler(logger, aggregator),
		GetVersionHandler:      handlers.NewGetVersionHandler(),
		PlaygroundHandler:      handlers.NewPlaygroundHandler(),
	}

	middlewareTransport := middleware.Transport{
		PanicRecoverMiddleware: middleware.NewPanicRecoverMiddleware(logger),
		RequestIDMiddleware:    middleware.NewRequestIDMiddleware(),
		CORSMiddleware:         middleware.NewCORSMiddleware(cfg.CORS),
		SecurityMiddleware:     middleware.NewSecurityMiddleware(),
		AccessLogMiddleware:    middleware.NewAccessLogMiddleware(logger, "api"),
		RateLimitMiddleware:    middleware.NewRateLimitMiddleware(logger, cfg.RateLimit),
	}
	if cfg.Metrics.Enabled {
		middlewareTransport.MetricsMiddleware = middleware.NewMetricsMiddleware()
	}

	return &Container{
		Cache:               cacheClient,
		StatsRepository:     statsRepository,
		Aggregator:          aggregator,
		LLMProvider:         llmProvider,
		Counter:             counter,
		Engine:              engine,
		Converter:           converter,
		HandlerTransport:    handlerTransport,
		MiddlewareTransport: middlewareTransport,
	}, nil
}

// newEngine picks the conversion backend. The markitdown backend shells out
// to the CLI and, when fallback_native is set, retries failures natively.
// The CLI cannot call the LLM, so requests that carry one always run natively.
func newEngine(cfg config.ConverterConfig, logger *logrus.Logger) markitdown.FileConverter {
	native := markitdown.New(logger)
	if cfg.Backend != config.BackendMarkitdown {
		return native
	}

	external := markitdown.NewExternalConverter(cfg.MarkitdownBin, cfg.Timeout, logger)
	if !external.Available() {
		logger.WithField("bin", cfg.MarkitdownBin).Warn("markitdown binary not found on PATH")
	}
	var engine markitdown.FileConverter = external
	if cfg.FallbackNative {
		engine = markitdown.WithFallback(external, native, logger)
	}
	return markitdown.WithLLMRoute(engine, native)
}
