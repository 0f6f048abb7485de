package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig holds connection settings shared by the cache and the sync locker.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisClient connects to Redis and pings it.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// RedisCache is a Cache backed by Redis string keys.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	log       *logrus.Entry
}

// NewRedisCache wraps an existing client. The caller owns the client.
func NewRedisCache(client *redis.Client, keyPrefix string, log *logrus.Entry) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "storesync"
	}
	log.WithField("prefix", keyPrefix).Info("redis cache ready")
	return &RedisCache{client: client, keyPrefix: keyPrefix + ":cache:", log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("redis get failed")
		return nil, err
	}
	return val, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}

// Close is a no-op; the client is shared with the locker.
func (c *RedisCache) Close() error { return nil }

var _ Cache = (*RedisCache)(nil)
