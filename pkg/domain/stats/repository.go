package stats

import "context"

//go:generate mockery --name=Repository --dir=. --output=./mocks --filename=repository_mock.go --case=underscore
type Repository interface {
	// Load returns the persisted totals.
	Load(ctx context.Context) (Snapshot, error)
	// Increment adds every non-zero counter in delta to the persisted totals.
	Increment(ctx context.Context, delta Snapshot) error
	Reconnect(ctx context.Context) error
	Close() error
}
