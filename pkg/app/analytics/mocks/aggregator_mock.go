package mocks

import (
	"context"

	"github.com/NeuralTrust/docsifer/pkg/app/analytics"
	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	"github.com/stretchr/testify/mock"
)

type Aggregator struct {
	mock.Mock
}

func (m *Aggregator) Access(tokens int) {
	m.Called(tokens)
}

func (m *Aggregator) Record(tokens int) {
	m.Called(tokens)
}

func (m *Aggregator) Stats() stats.Snapshot {
	args := m.Called()
	snapshot, _ := args.Get(0).(stats.Snapshot)
	return snapshot
}

func (m *Aggregator) Summary() analytics.Report {
	args := m.Called()
	report, _ := args.Get(0).(analytics.Report)
	return report
}

func (m *Aggregator) Start(ctx context.Context) {
	m.Called(ctx)
}

func (m *Aggregator) Flush(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Aggregator) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
