package mocks

import (
	"context"
	"fmt"

	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	"github.com/stretchr/testify/mock"
)

type Repository struct {
	mock.Mock
}

func (m *Repository) Load(ctx context.Context) (stats.Snapshot, error) {
	args := m.Called(ctx)
	snapshot, ok := args.Get(0).(stats.Snapshot)
	if !ok && args.Get(0) != nil {
		return stats.Snapshot{}, fmt.Errorf("expected stats.Snapshot, got %T", args.Get(0))
	}
	return snapshot, args.Error(1)
}

func (m *Repository) Increment(ctx context.Context, delta stats.Snapshot) error {
	args := m.Called(ctx, delta)
	return args.Error(0)
}

func (m *Repository) Reconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Repository) Close() error {
	args := m.Called()
	return args.Error(0)
}
