package mpesa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores the OAuth access token between requests.
type TokenCache interface {
	Get(ctx context.Context) (string, bool)
	Set(ctx context.Context, token string, ttl time.Duration) error
}

// MemoryTokenCache keeps the token in process memory.
type MemoryTokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryTokenCache creates an empty in-process cache.
func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{now: time.Now}
}

func (c *MemoryTokenCache) Get(_ context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *MemoryTokenCache) Set(_ context.Context, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// RedisTokenCache shares the token between service replicas.
type RedisTokenCache struct {
	rdb *redis.Client
	key string
}

// NewRedisTokenCache stores the token under key.
func NewRedisTokenCache(rdb *redis.Client, key string) *RedisTokenCache {
	return &RedisTokenCache{rdb: rdb, key: key}
}

func (c *RedisTokenCache) Get(ctx context.Context) (string, bool) {
	token, err := c.rdb.Get(ctx, c.key).Result()
	if err != nil {
		// redis.Nil and connection errors both mean "fetch a fresh token".
		return "", false
	}
	return token, token != ""
}

func (c *RedisTokenCache) Set(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("token ttl must be positive")
	}
	return c.rdb.Set(ctx, c.key, token, ttl).Err()
}
