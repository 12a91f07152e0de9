package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NeuralTrust/docsifer/pkg/domain/stats"
	"github.com/NeuralTrust/docsifer/pkg/infra/cache"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const (
	StatsKeyPrefix  = "analytics"
	StatsKeyPattern = StatsKeyPrefix + ":%s:%s"
	scanCount       = 1000
)

type redisStatsRepository struct {
	cache  cache.Client
	logger *logrus.Logger
}

func NewRedisStatsRepository(cache cache.Client, logger *logrus.Logger) stats.Repository {
	return &redisStatsRepository{
		cache:  cache,
		logger: logger,
	}
}

func StatsKey(metric stats.Metric, period string) string {
	return fmt.Sprintf(StatsKeyPattern, metric, period)
}

func (r *redisStatsRepository) Load(ctx context.Context) (stats.Snapshot, error) {
	snapshot := stats.NewSnapshot()
	rc := r.cache.RedisClient()

	for _, metric := range stats.Metrics {
		prefix := fmt.Sprintf("%s:%s:", StatsKeyPrefix, metric)
		counters := snapshot.Counters(metric)

		var cursor uint64
		for {
			keys, next, err := rc.Scan(ctx, cursor, prefix+"*", scanCount).Result()
			if err != nil {
				return stats.Snapshot{}, fmt.Errorf("error scanning %s keys: %w", metric, err)
			}
			for _, key := range keys {
				period := strings.TrimPrefix(key, prefix)
				fields, err := rc.HGetAll(ctx, key).Result()
				if err != nil {
					return stats.Snapshot{}, fmt.Errorf("error reading %s: %w", key, err)
				}
				for label, raw := range fields {
					value, err := strconv.ParseInt(raw, 10, 64)
					if err != nil {
						r.logger.WithFields(logrus.Fields{
							"key":   key,
							"field": label,
							"value": raw,
						}).Warn("skipping non-integer analytics value")
						continue
					}
					// SCAN may return a key more than once.
					counters.Set(period, label, value)
				}
			}
			if next == 0 {
				break
			}
			cursor = next
		}
	}

	return snapshot, nil
}

// Increment issues one HINCRBY per non-zero counter in a single pipeline.
// Commands are ordered by metric, period and label.
func (r *redisStatsRepository) Increment(ctx context.Context, delta stats.Snapshot) error {
	if delta.IsZero() {
		return nil
	}

	_, err := r.cache.RedisClient().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, metric := range stats.Metrics {
			counters := delta.Counters(metric)
			for _, period := range sortedKeys(counters) {
				labels := counters[period]
				names := make([]string, 0, len(labels))
				for label := range labels {
					names = append(names, label)
				}
				sort.Strings(names)
				for _, label := range names {
					if v := labels[label]; v != 0 {
						pipe.HIncrBy(ctx, StatsKey(metric, period), label, v)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error incrementing analytics counters: %w", err)
	}
	return nil
}

func (r *redisStatsRepository) Reconnect(ctx context.Context) error {
	return r.cache.Reconnect(ctx)
}

func (r *redisStatsRepository) Close() error {
	return r.cache.Close()
}

func sortedKeys(c stats.Counters) []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
