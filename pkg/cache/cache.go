package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is cache providers.
var ProviderSet = wire.NewSet(NewCache)

// ErrCacheMiss is returned when a key is not present in the cache.
var ErrCacheMiss = errors.New("cache: key not found")

// Redis holds the redis connection settings.
type Redis struct {
	Host     string `mapstructure:"host" json:"host" yaml:"host"`
	Port     int    `mapstructure:"port" json:"port" yaml:"port"`
	Password string `mapstructure:"password" json:"password" yaml:"password"`
	Db       int    `mapstructure:"db" json:"db" yaml:"db"`
	// Enabled toggles the redis read-side cache. When false the engine
	// falls back to an in-process cache suitable for single-node mode.
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
}

// SetDefaults fills missing settings with sane defaults.
func (c *Redis) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 6379
	}
}

// Addr returns the host:port address of the redis server.
func (c *Redis) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ICache is the minimal cache contract used by the repo layer.
type ICache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Close() error
}

type redisCache struct {
	client *redis.Client
}

// NewCache builds an ICache from the redis settings. When redis is
// disabled an in-memory cache is returned instead, so callers never
// need to branch on the deployment mode.
func NewCache(conf *Redis) (ICache, func(), error) {
	conf.SetDefaults()
	if !conf.Enabled {
		mem := NewMemoryCache()
		return mem, func() { _ = mem.Close() }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr(),
		Password: conf.Password,
		DB:       conf.Db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", conf.Addr(), err)
	}

	c := &redisCache{client: client}
	return c, func() { _ = c.Close() }, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to get cache key %s: %w", key, err)
	}
	return val, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

func (c *redisCache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
