package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Converter ConverterConfig `mapstructure:"converter"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	MetricsPort  int           `mapstructure:"metrics_port"`
	BodyLimitMB  int           `mapstructure:"body_limit_mb"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// PublicURL is what the swagger UI uses to locate swagger.json.
	PublicURL string `mapstructure:"public_url"`
}

type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	MaxAge           string   `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	RPS   float64       `mapstructure:"rps"`
	Burst int           `mapstructure:"burst"`
	TTL   time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	EnableLatency bool `mapstructure:"enable_latency"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

type AnalyticsConfig struct {
	Label        string        `mapstructure:"label"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
}

type ConverterConfig struct {
	// Backend is "native" or "markitdown".
	Backend        string        `mapstructure:"backend"`
	MarkitdownBin  string        `mapstructure:"markitdown_bin"`
	FallbackNative bool          `mapstructure:"fallback_native"`
	LocalRoot      string        `mapstructure:"local_root"`
	TokenModel     string        `mapstructure:"token_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type LLMConfig struct {
	DefaultBaseURL     string        `mapstructure:"default_base_url"`
	DefaultModel       string        `mapstructure:"default_model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	ImagePrompt        string        `mapstructure:"image_prompt"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	BreakerTimeout     time.Duration `mapstructure:"breaker_timeout"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	ClientTTL          time.Duration `mapstructure:"client_ttl"`
	MaxConnsPerHost    int           `mapstructure:"max_conns_per_host"`
	// InsecureSkipVerify is for self-hosted endpoints with self-signed certs.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

const (
	BackendNative     = "native"
	BackendMarkitdown = "markitdown"
)

var globalConfig Config

// Load reads config.yaml from configPath (falling back to ./config and .) and
// overlays environment variables, e.g. REDIS_HOST or ANALYTICS_SYNC_INTERVAL.
// A missing file is not an error: defaults plus environment are used.
func Load(configPath string) error {
	cfg, err := loadConfigFile(configPath, "config")
	if err != nil {
		return err
	}
	globalConfig = *cfg
	return nil
}

func loadConfigFile(configPath, fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaultValues(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}
	return &cfg, nil
}

func setDefaultValues(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 7860)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.body_limit_mb", 32)
	v.SetDefault("server.read_timeout", "120s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.public_url", "http://localhost:7860")

	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.allow_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.expose_headers", []string{"X-Request-Id"})
	v.SetDefault("cors.max_age", "600")

	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.ttl", "10m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.enable_latency", true)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.tls", false)

	v.SetDefault("analytics.label", "docsifer")
	v.SetDefault("analytics.sync_interval", "30m")
	v.SetDefault("analytics.max_retries", 5)
	v.SetDefault("analytics.workers", 2)
	v.SetDefault("analytics.queue_size", 1024)

	v.SetDefault("converter.backend", BackendNative)
	v.SetDefault("converter.markitdown_bin", "markitdown")
	v.SetDefault("converter.fallback_native", true)
	v.SetDefault("converter.local_root", "")
	v.SetDefault("converter.token_model", "gpt-4o")
	v.SetDefault("converter.timeout", "5m")

	v.SetDefault("llm.default_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.default_model", "gpt-4o-mini")
	v.SetDefault("llm.transcription_model", "whisper-1")
	v.SetDefault("llm.image_prompt", "Write a detailed caption for this image.")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.breaker_timeout", "30s")
	v.SetDefault("llm.breaker_max_failures", 5)
	v.SetDefault("llm.client_ttl", "30m")
	v.SetDefault("llm.max_conns_per_host", 64)
	v.SetDefault("llm.insecure_skip_verify", false)
}

func GetConfig() *Config {
	return &globalConfig
}
