package analytics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	"github.com/NeuralTrust/docsifer/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
)

var ErrReconnectExhausted = errors.New("analytics store reconnection attempts exhausted")

const (
	DefaultLabel        = "docsifer"
	DefaultSyncInterval = 30 * time.Minute
	DefaultMaxRetries   = 5
	DefaultBackoff      = time.Second
)

type Config struct {
	Label        string
	SyncInterval time.Duration
	MaxRetries   int
	Workers      int
	QueueSize    int
	// Backoff is the first reconnection delay; it doubles on each attempt.
	Backoff time.Duration
}

// Report is the per-label summary of both metrics.
type Report struct {
	Access []stats.Summary `json:"access"`
	Tokens []stats.Summary `json:"tokens"`
}

//go:generate mockery --name=Aggregator --dir=. --output=./mocks --filename=aggregator_mock.go --case=underscore
type Aggregator interface {
	// Access counts one conversion and its tokens in every current period.
	Access(tokens int)
	// Record hands Access to the background workers.
	Record(tokens int)
	Stats() stats.Snapshot
	Summary() Report
	Start(ctx context.Context)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

type aggregator struct {
	repo   stats.Repository
	config Config
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.Mutex
	current stats.Snapshot
	pending stats.Snapshot

	flushMu sync.Mutex

	queueMu sync.RWMutex
	queue   chan int
	closed  bool
	workers sync.WaitGroup

	cancelSync context.CancelFunc
	syncDone   chan struct{}
	closeOnce  sync.Once
}

func NewAggregator(repo stats.Repository, config Config, logger *logrus.Logger) Aggregator {
	if config.Label == "" {
		config.Label = DefaultLabel
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultSyncInterval
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	a := &aggregator{
		repo:    repo,
		config:  config,
		logger:  logger,
		now:     time.Now,
		current: stats.NewSnapshot(),
		pending: stats.NewSnapshot(),
		queue:   make(chan int, config.QueueSize),
	}
	for i := 0; i < config.Workers; i++ {
		a.workers.Add(1)
		go a.work()
	}
	return a
}

func (a *aggregator) work() {
	defer a.workers.Done()
	for tokens := range a.queue {
		a.Access(tokens)
	}
}

func (a *aggregator) Access(tokens int) {
	keys := stats.KeysFor(a.now())
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, period := range keys.All() {
		for _, s := range []stats.Snapshot{a.current, a.pending} {
			s.Access.Add(period, a.config.Label, 1)
			s.Tokens.Add(period, a.config.Label, int64(tokens))
		}
	}
}

func (a *aggregator) Record(tokens int) {
	a.queueMu.RLock()
	defer a.queueMu.RUnlock()
	if a.closed {
		a.Access(tokens)
		return
	}
	select {
	case a.queue <- tokens:
	default:
		a.logger.Debug("analytics queue full, recording synchronously")
		a.Access(tokens)
	}
}

func (a *aggregator) Stats() stats.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current.Clone()
}

func (a *aggregator) Summary() Report {
	keys := stats.KeysFor(a.now())
	snapshot := a.Stats()
	return Report{
		Access: stats.Summarize(snapshot.Access, keys),
		Tokens: stats.Summarize(snapshot.Tokens, keys),
	}
}

// Start loads persisted totals and begins the periodic flush. A failed load is
// logged and the aggregator starts from zero.
func (a *aggregator) Start(ctx context.Context) {
	loaded, err := a.repo.Load(ctx)
	if err != nil {
		a.logger.WithError(err).Error("failed to load analytics from store")
	} else {
		a.mu.Lock()
		for _, metric := range stats.Metrics {
			dst := a.current.Counters(metric)
			for period, labels := range loaded.Counters(metric) {
				for label, v := range labels {
					dst.Add(period, label, v)
				}
			}
		}
		a.mu.Unlock()
		a.logger.Info("analytics loaded from store")
	}

	syncCtx, cancel := context.WithCancel(ctx)
	a.cancelSync = cancel
	a.syncDone = make(chan struct{})
	go a.syncLoop(syncCtx)
}

func (a *aggregator) syncLoop(ctx context.Context) {
	defer close(a.syncDone)
	ticker := time.NewTicker(a.config.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sync(ctx)
		}
	}
}

func (a *aggregator) sync(ctx context.Context) {
	if err := a.Flush(ctx); err != nil {
		a.logger.WithError(err).Warn("analytics sync failed, reconnecting")
		if err := a.reconnect(ctx); err != nil {
			a.logger.WithError(err).Error("CRITICAL: analytics store unavailable, increments kept in memory")
		}
	}
}

// Flush writes pending increments and subtracts exactly what was written, so
// accesses recorded during the write stay pending.
func (a *aggregator) Flush(ctx context.Context) error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	a.mu.Lock()
	delta := a.pending.Clone()
	a.mu.Unlock()

	if delta.IsZero() {
		return nil
	}
	if err := a.repo.Increment(ctx, delta); err != nil {
		prometheus.AnalyticsFlushTotal.WithLabelValues("error").Inc()
		return err
	}
	prometheus.AnalyticsFlushTotal.WithLabelValues("ok").Inc()

	a.mu.Lock()
	a.pending.Subtract(delta)
	a.mu.Unlock()

	a.logger.Debug("analytics synced to store")
	return nil
}

func (a *aggregator) reconnect(ctx context.Context) error {
	delay := a.config.Backoff
	for attempt := 1; attempt <= a.config.MaxRetries; attempt++ {
		err := a.repo.Reconnect(ctx)
		if err == nil {
			a.logger.WithField("attempt", attempt).Info("analytics store reconnected")
			return nil
		}
		a.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		}).Warn("analytics store reconnection failed")

		if attempt == a.config.MaxRetries {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return ErrReconnectExhausted
}

// Close drains the worker queue, stops the sync loop, flushes what is pending
// and closes the store.
func (a *aggregator) Close(ctx context.Context) error {
	var err error
	a.closeOnce.Do(func() {
		a.queueMu.Lock()
		a.closed = true
		close(a.queue)
		a.queueMu.Unlock()
		a.workers.Wait()

		if a.cancelSync != nil {
			a.cancelSync()
			<-a.syncDone
		}

		if flushErr := a.Flush(ctx); flushErr != nil {
			a.logger.WithError(flushErr).Error("final analytics flush failed")
			err = flushErr
		}
		if closeErr := a.repo.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}
