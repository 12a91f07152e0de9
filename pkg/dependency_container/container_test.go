package dependency_container

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/config"
	"github.com/NeuralTrust/docsifer/pkg/infra/cache"
	llmMocks "github.com/NeuralTrust/docsifer/pkg/infra/llm/mocks"
	"github.com/NeuralTrust/docsifer/pkg/infra/logger"
	"github.com/NeuralTrust/docsifer/pkg/infra/markitdown"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Converter: config.ConverterConfig{Backend: config.BackendNative},
		Metrics:   config.MetricsConfig{Enabled: true},
	}
}

func TestNewContainer_InMemory(t *testing.T) {
	c, err := NewContainer(ContainerDI{Cfg: baseConfig(), Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Aggregator.Close(context.Background()) })

	assert.Nil(t, c.Cache)
	assert.IsType(t, &markitdown.MarkItDown{}, c.Engine)

	h := c.HandlerTransport
	assert.NotNil(t, h.ConvertHandler)
	assert.NotNil(t, h.GetStatsHandler)
	assert.NotNil(t, h.GetStatsSummaryHandler)
	assert.NotNil(t, h.GetVersionHandler)
	assert.NotNil(t, h.PlaygroundHandler)

	m := c.MiddlewareTransport
	assert.NotNil(t, m.PanicRecoverMiddleware)
	assert.NotNil(t, m.RequestIDMiddleware)
	assert.NotNil(t, m.MetricsMiddleware)
	assert.NotNil(t, m.RateLimitMiddleware)

	_, err = c.StatsRepository.Load(context.Background())
	assert.NoError(t, err)
}

func TestNewContainer_MetricsDisabled(t *testing.T) {
	cfg := baseConfig()
	cfg.Metrics.Enabled = false

	c, err := NewContainer(ContainerDI{Cfg: cfg, Logger: logger.NewNopLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Aggregator.Close(context.Background()) })
	assert.Nil(t, c.MiddlewareTransport.MetricsMiddleware)
}

func TestNewContainer_InjectedCache(t *testing.T) {
	db, _ := redismock.NewClientMock()
	log := logger.NewNopLogger()

	c, err := NewContainer(ContainerDI{
		Cfg:    baseConfig(),
		Logger: log,
		Cache:  cache.NewClientFromRedis(db, log),
	})
	require.NoError(t, err)
	assert.NotNil(t, c.Cache)

	assert.NoError(t, c.Aggregator.Close(context.Background()))
}

func writeFakeMarkitdown(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "markitdown")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho from cli\n"), 0o755))
	return path
}

func writePNG(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))
	path := filepath.Join(t.TempDir(), "dot.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestNewEngine(t *testing.T) {
	log := logger.NewNopLogger()

	native := newEngine(config.ConverterConfig{Backend: config.BackendNative}, log)
	assert.IsType(t, &markitdown.MarkItDown{}, native)

	for _, fallback := range []bool{false, true} {
		t.Run(fmt.Sprintf("markitdown backend fallback=%v", fallback), func(t *testing.T) {
			engine := newEngine(config.ConverterConfig{
				Backend:        config.BackendMarkitdown,
				MarkitdownBin:  writeFakeMarkitdown(t),
				Timeout:        5 * time.Second,
				FallbackNative: fallback,
			}, log)
			input := writePNG(t)

			res, err := engine.ConvertFile(context.Background(), input, markitdown.Options{})
			require.NoError(t, err)
			assert.Equal(t, "from cli", strings.TrimSpace(res.Markdown))

			cli := new(llmMocks.Client)
			cli.On("DescribeImage", mock.Anything, mock.Anything, "image/png").Return("A single pixel.", nil).Once()

			res, err = engine.ConvertFile(context.Background(), input, markitdown.Options{LLM: cli})
			require.NoError(t, err)
			assert.Contains(t, res.Markdown, "ImageSize: 1x1")
			assert.Contains(t, res.Markdown, "A single pixel.")
			cli.AssertExpectations(t)
		})
	}
}
