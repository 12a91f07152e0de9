package repository

import (
	"context"
	"sync"

	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
)

// memoryStatsRepository keeps totals in process. It backs analytics when
// redis is disabled, so counters live only as long as the process.
type memoryStatsRepository struct {
	mu       sync.Mutex
	snapshot stats.Snapshot
}

func NewMemoryStatsRepository() stats.Repository {
	return &memoryStatsRepository{snapshot: stats.NewSnapshot()}
}

func (r *memoryStatsRepository) Load(_ context.Context) (stats.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot.Clone(), nil
}

func (r *memoryStatsRepository) Increment(_ context.Context, delta stats.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, metric := range stats.Metrics {
		dst := r.snapshot.Counters(metric)
		for period, labels := range delta.Counters(metric) {
			for label, v := range labels {
				dst.Add(period, label, v)
			}
		}
	}
	return nil
}

func (r *memoryStatsRepository) Reconnect(context.Context) error { return nil }

func (r *memoryStatsRepository) Close() error { return nil }
