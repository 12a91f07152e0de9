package mocks

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/docsifer/pkg/infra/markitdown"
	"github.com/stretchr/testify/mock"
)

type FileConverter struct {
	mock.Mock
}

func (m *FileConverter) ConvertFile(ctx context.Context, path string, opts markitdown.Options) (*markitdown.Result, error) {
	args := m.Called(ctx, path, opts)
	res, ok := args.Get(0).(*markitdown.Result)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("expected *markitdown.Result, got %T", args.Get(0))
	}
	return res, args.Error(1)
}
