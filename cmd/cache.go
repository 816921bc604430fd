package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/redis/go-redis/v9"
)

// accessCache is the checker's decision store plus a way to release it.
type accessCache interface {
	access.Cache
	Close() error
}

type memoryCache struct{ *access.MemoryCache }

func (memoryCache) Close() error { return nil }

type redisCache struct {
	*access.RedisCache
	client redis.UniversalClient
}

func (c redisCache) Close() error { return c.client.Close() }

func initCache(ctx context.Context, cfg internal.CacheConfig) (accessCache, error) {
	if cfg.Driver != internal.CacheDriverRedis {
		return memoryCache{access.NewMemoryCache()}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	return redisCache{
		RedisCache: access.NewRedisCache(client, cfg.Redis.KeyPrefix),
		client:     client,
	}, nil
}
