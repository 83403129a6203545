// Package redis provides the Redis-backed discovery result cache.
package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/cloudassure/engine/internal/config"
	"github.com/cloudassure/engine/pkg/logger"
)

// Client wraps redis.Client with additional functionality.
type Client struct {
	client *redis.Client
	logger *logger.Logger
	cfg    *config.RedisConfig
}

// New creates a new Redis client.
func New(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("redis config is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis connected", "addr", cfg.Addr())
	return &Client{
		client: client,
		logger: log,
		cfg:    cfg,
	}, nil
}

// HealthCheck performs a health check on the Redis connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
