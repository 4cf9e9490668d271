package cachex

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"frontdesk-queue-system/shared/config"
)

var errNotInitialized = errors.New("redis client not initialized")

type Client struct {
	redis redis.UniversalClient
}

func New(cfg config.Config) (*Client, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &Client{redis: rdb}, nil
}

// Wrap adapts an existing client, e.g. one pointed at miniredis in tests.
func Wrap(rdb redis.UniversalClient) *Client {
	return &Client{redis: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.redis == nil {
		return errNotInitialized
	}
	return c.redis.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *Client) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.redis == nil {
		return errNotInitialized
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, b, ttl).Err()
}

// GetJSON reports false without error when the key is missing.
func (c *Client) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil || c.redis == nil {
		return false, errNotInitialized
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// PublishJSON broadcasts value on a pub/sub channel and returns the number of
// subscribers that received it.
func (c *Client) PublishJSON(ctx context.Context, channel string, value any) (int64, error) {
	if c == nil || c.redis == nil {
		return 0, errNotInitialized
	}
	b, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	return c.redis.Publish(ctx, channel, b).Result()
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if c == nil || c.redis == nil {
		return errNotInitialized
	}
	return c.redis.Del(ctx, key).Err()
}

func (c *Client) Client() redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c.redis
}
