package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/config"
	"github.com/NeuralTrust/docsifer/pkg/dependency_container"
	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	infraLogger "github.com/NeuralTrust/docsifer/pkg/infra/logger"
	"github.com/NeuralTrust/docsifer/pkg/infra/prometheus"
	"github.com/NeuralTrust/docsifer/pkg/server"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	modeServe   = "serve"
	modeConvert = "convert"

	closeTimeout = 30 * time.Second
)

func main() {
	mode := getMode()
	envFile := os.Getenv("ENV_FILE")

	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger(mode)

	// Load configuration
	if err := config.Load("../../config"); err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	switch mode {
	case modeConvert:
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: docsifer convert <path>")
			os.Exit(2)
		}
		if err := runConvert(cfg, logger, os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, "conversion failed:", err)
			os.Exit(1)
		}
	case modeServe:
		runServer(cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, expected %q or %q\n", mode, modeServe, modeConvert)
		os.Exit(2)
	}
}

func runServer(cfg *config.Config, logger *logrus.Logger) {
	ctx := context.Background()

	prometheus.Initialize(prometheus.MetricsConfig{
		EnableLatency: cfg.Metrics.EnableLatency,
	})

	container, err := dependency_container.NewContainer(dependency_container.ContainerDI{
		Cfg:    cfg,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize container: %v", err)
	}

	container.Aggregator.Start(ctx)

	srv := server.NewAPIServer(server.APIServerDI{
		MiddlewareTransport: container.MiddlewareTransport,
		HandlerTransport:    container.HandlerTransport,
		Config:              cfg,
		Logger:              logger,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server...")
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("error shutting down server")
	}

	closeCtx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := container.Aggregator.Close(closeCtx); err != nil {
		logger.WithError(err).Error("failed to flush analytics on shutdown")
	}
	logger.Info("server gracefully stopped")
}

// runConvert prints the Markdown for one file. LLM credentials come from
// OPENAI_API_KEY, OPENAI_BASE_URL and OPENAI_MODEL. Usage is not recorded.
func runConvert(cfg *config.Config, logger *logrus.Logger, path string) error {
	cfg.Redis.Enabled = false
	cfg.Metrics.Enabled = false

	container, err := dependency_container.NewContainer(dependency_container.ContainerDI{
		Cfg:    cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = container.Aggregator.Close(context.Background()) }()

	llmConfig := &conversion.LLMConfig{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
		Model:   os.Getenv("OPENAI_MODEL"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, _, err := container.Converter.ConvertFile(ctx, path, llmConfig, conversion.DefaultSettings())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, result.Markdown)
	return err
}

func getMode() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return modeServe
}
