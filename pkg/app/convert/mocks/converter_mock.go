package mocks

import (
	"context"
	"io"

	"github.com/NeuralTrust/docsifer/pkg/domain/conversion"
	"github.com/stretchr/testify/mock"
)

type Converter struct {
	mock.Mock
}

func (m *Converter) ConvertFile(ctx context.Context, path string, llmConfig *conversion.LLMConfig, settings conversion.Settings) (*conversion.Result, int, error) {
	args := m.Called(ctx, path, llmConfig, settings)
	return result(args)
}

func (m *Converter) ConvertUpload(ctx context.Context, filename string, r io.Reader, llmConfig *conversion.LLMConfig, settings conversion.Settings) (*conversion.Result, int, error) {
	args := m.Called(ctx, filename, r, llmConfig, settings)
	return result(args)
}

func (m *Converter) ConvertLocal(ctx context.Context, path string, llmConfig *conversion.LLMConfig, settings conversion.Settings) (*conversion.Result, int, error) {
	args := m.Called(ctx, path, llmConfig, settings)
	return result(args)
}

func result(args mock.Arguments) (*conversion.Result, int, error) {
	res, _ := args.Get(0).(*conversion.Result)
	return res, args.Int(1), args.Error(2)
}
