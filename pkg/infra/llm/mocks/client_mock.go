package mocks

import (
	"context"
	"io"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/NeuralTrust/docsifer/pkg/infra/llm"
	"github.com/stretchr/testify/mock"
)

type Client struct {
	mock.Mock
}

func (m *Client) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	args := m.Called(ctx, data, mimeType)
	return args.String(0), args.Error(1)
}

func (m *Client) Transcribe(ctx context.Context, filename string, r io.Reader) (string, error) {
	args := m.Called(ctx, filename, r)
	return args.String(0), args.Error(1)
}

func (m *Client) Model() string {
	args := m.Called()
	return args.String(0)
}

type Provider struct {
	mock.Mock
}

func (m *Provider) ClientFor(cfg conversion.LLMConfig) llm.Client {
	args := m.Called(cfg)
	cli, _ := args.Get(0).(llm.Client)
	return cli
}
