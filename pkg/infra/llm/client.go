package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/infra/cache"
	"github.com/NeuralTrust/docsifer/pkg/infra/httpx"
	"github.com/NeuralTrust/docsifer/pkg/version"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultImagePrompt        = "Write a detailed caption for this image."
	DefaultTranscriptionModel = "whisper-1"
	DefaultClientTTL          = 30 * time.Minute
)

type Config struct {
	DefaultBaseURL     string
	DefaultModel       string
	TranscriptionModel string
	ImagePrompt        string
	Timeout            time.Duration
	MaxRetries         int
	BreakerTimeout     time.Duration
	BreakerMaxFailures uint32
	// ClientTTL evicts SDK clients whose credentials have not been used for
	// this long.
	ClientTTL          time.Duration
	MaxConnsPerHost    int
	InsecureSkipVerify bool
}

// Client is an OpenAI-compatible endpoint bound to one request's credentials.
//
//go:generate mockery --name=Client --dir=. --output=./mocks --filename=client_mock.go --case=underscore
type Client interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
	Transcribe(ctx context.Context, filename string, r io.Reader) (string, error)
	Model() string
}

//go:generate mockery --name=Provider --dir=. --output=./mocks --filename=provider_mock.go --case=underscore
type Provider interface {
	ClientFor(cfg conversion.LLMConfig) Client
}

type pool struct {
	config     Config
	httpClient httpx.Client
	breakers   *httpx.BreakerRegistry
	logger     *logrus.Logger
	clients    *cache.TTLMap
	sf         singleflight.Group
}

// NewProvider returns a Provider that keeps one SDK client per
// (api key, base url) pair. Every base URL gets its own circuit breaker.
func NewProvider(config Config, httpClient httpx.Client, logger *logrus.Logger) Provider {
	if config.DefaultBaseURL == "" {
		config.DefaultBaseURL = conversion.DefaultLLMBaseURL
	}
	if config.DefaultModel == "" {
		config.DefaultModel = conversion.DefaultLLMModel
	}
	if config.TranscriptionModel == "" {
		config.TranscriptionModel = DefaultTranscriptionModel
	}
	if config.ImagePrompt == "" {
		config.ImagePrompt = DefaultImagePrompt
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = 30 * time.Second
	}
	if config.BreakerMaxFailures == 0 {
		config.BreakerMaxFailures = 5
	}
	if config.ClientTTL <= 0 {
		config.ClientTTL = DefaultClientTTL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(config)
	}
	p := &pool{
		config:     config,
		httpClient: httpClient,
		breakers:   httpx.NewBreakerRegistry(config.BreakerTimeout, config.BreakerMaxFailures),
		logger:     logger,
		clients:    cache.NewTTLMap(config.ClientTTL),
	}
	go p.sweepLoop(config.ClientTTL)
	return p
}

// NewHTTPClient is the fasthttp transport every SDK client in the pool shares.
func NewHTTPClient(config Config) httpx.Client {
	opts := []httpx.FastHTTPClientOption{
		httpx.WithTimeout(config.Timeout),
		httpx.WithUserAgent(version.AppName + "/" + version.Version),
		httpx.WithInsecureSkipVerify(config.InsecureSkipVerify),
	}
	if config.MaxConnsPerHost > 0 {
		opts = append(opts, httpx.WithMaxConnsPerHost(config.MaxConnsPerHost))
	}
	return httpx.NewFastHTTPClient(opts...)
}

func (p *pool) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		if n := p.clients.Sweep(); n > 0 {
			p.logger.WithField("removed", n).Debug("idle llm clients evicted")
		}
	}
}

func (p *pool) ClientFor(cfg conversion.LLMConfig) Client {
	cfg = cfg.WithDefaults(p.config.DefaultBaseURL, p.config.DefaultModel)
	return &client{
		sdk:                p.getOrCreateClient(cfg.APIKey, cfg.BaseURL),
		model:              cfg.Model,
		baseURL:            cfg.BaseURL,
		imagePrompt:        p.config.ImagePrompt,
		transcriptionModel: p.config.TranscriptionModel,
		logger:             p.logger,
	}
}

func (p *pool) getOrCreateClient(apiKey, baseURL string) *openai.Client {
	key := baseURL + "|" + apiKey
	v, _, _ := p.sf.Do(key, func() (any, error) {
		return p.clients.GetOrSet(key, func() interface{} {
			return p.newClient(apiKey, baseURL)
		}), nil
	})
	if cli, ok := v.(*openai.Client); ok {
		return cli
	}
	return p.newClient(apiKey, baseURL)
}

func (p *pool) newClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpx.NewBreakerClient(p.httpClient, p.breakers.Get("llm:"+baseURL))),
		option.WithMaxRetries(p.config.MaxRetries),
	}
	if p.config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(p.config.Timeout))
	}
	cli := openai.NewClient(opts...)
	return &cli
}

type client struct {
	sdk                *openai.Client
	model              string
	baseURL            string
	imagePrompt        string
	transcriptionModel string
	logger             *logrus.Logger
}

func (c *client) Model() string { return c.model }

func (c *client) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(c.imagePrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURI}),
			}),
		},
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"base_url": c.baseURL,
			"model":    c.model,
			"error":    err.Error(),
		}).Warn("image description request failed")
		return "", fmt.Errorf("%w: image description: %w", conversion.ErrLLMRequest, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: image description: no choices returned", conversion.ErrLLMRequest)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *client) Transcribe(ctx context.Context, filename string, r io.Reader) (string, error) {
	resp, err := c.sdk.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(r, filename, ""),
		Model: openai.AudioModel(c.transcriptionModel),
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"base_url": c.baseURL,
			"model":    c.transcriptionModel,
			"error":    err.Error(),
		}).Warn("audio transcription request failed")
		return "", fmt.Errorf("%w: transcription: %w", conversion.ErrLLMRequest, err)
	}
	return resp.Text, nil
}
