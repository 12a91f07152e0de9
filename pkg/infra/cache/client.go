package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 5 * time.Second

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=client_mock.go --case=underscore --with-expecter
type Client interface {
	RedisClient() *redis.Client
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Close() error
}

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TLS      bool
}

type client struct {
	mu          sync.RWMutex
	redisClient *redis.Client
	config      Config
	logger      *logrus.Logger
}

// NewClient dials redis and verifies the connection with a ping.
func NewClient(config Config, logger *logrus.Logger) (Client, error) {
	c := &client{
		config: config,
		logger: logger,
	}
	c.redisClient = newRedisClient(config)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		logger.WithFields(logrus.Fields{
			"host":  config.Host,
			"port":  config.Port,
			"error": err.Error(),
		}).Error("failed to connect to redis")
		_ = c.redisClient.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host": config.Host,
		"port": config.Port,
	}).Info("redis connected successfully")

	return c, nil
}

// NewClientFromRedis wraps an existing redis client, e.g. one built by redismock.
func NewClientFromRedis(rc *redis.Client, logger *logrus.Logger) Client {
	return &client{
		redisClient: rc,
		logger:      logger,
	}
}

func newRedisClient(config Config) *redis.Client {
	options := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	}
	if config.TLS {
		options.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	return redis.NewClient(options)
}

func (c *client) RedisClient() *redis.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.redisClient
}

func (c *client) Ping(ctx context.Context) error {
	return c.RedisClient().Ping(ctx).Err()
}

// Reconnect closes the current connection pool and dials a fresh one. Clients
// wrapped with NewClientFromRedis have no dial config and only re-ping.
func (c *client) Reconnect(ctx context.Context) error {
	if c.config.Host == "" {
		return c.Ping(ctx)
	}

	fresh := newRedisClient(c.config)
	if err := fresh.Ping(ctx).Err(); err != nil {
		_ = fresh.Close()
		return fmt.Errorf("failed to reconnect to redis: %w", err)
	}

	c.mu.Lock()
	old := c.redisClient
	c.redisClient = fresh
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close previous redis client")
		}
	}
	c.logger.Info("reconnected to redis successfully")
	return nil
}

func (c *client) Close() error {
	return c.RedisClient().Close()
}
