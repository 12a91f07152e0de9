package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	// Latency buckets in milliseconds. Conversions of large office files and
	// LLM round trips land in the upper buckets.
	latencyBuckets = []float64{
		5, 10, 25,
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000, 30000,
		60000, 120000,
	}

	RequestTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsifer_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"route", "method", "status"},
	)

	RequestLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsifer_request_latency_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"route"},
	)

	ConversionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsifer_conversions_total",
			Help: "Document conversions by detected extension and outcome",
		},
		[]string{"extension", "status"},
	)

	ConversionLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsifer_conversion_latency_ms",
			Help:    "Time spent converting a document in milliseconds",
			Buckets: latencyBuckets,
		},
		[]string{"extension", "llm"},
	)

	TokensTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "docsifer_tokens_total",
			Help: "Tokens counted over all produced Markdown",
		},
	)

	AnalyticsFlushTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsifer_analytics_flush_total",
			Help: "Analytics flushes to the stats store by outcome",
		},
		[]string{"status"},
	)
)

type MetricsConfig struct {
	EnableLatency bool // request and conversion latency histograms
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		EnableLatency: true,
	}
}

var Config MetricsConfig

func Initialize(cfg MetricsConfig) {
	Config = cfg
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}

// Gatherer exposes the registry to the /metrics handler.
func Gatherer() prometheus.Gatherer {
	return registry
}
