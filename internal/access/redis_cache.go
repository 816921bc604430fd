package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisKeyPrefix = "access:"
	scanBatchSize         = 200
)

// RedisCache shares access decisions between application instances. Values
// are stored as "1" or "0" under keyPrefix + "{user_id}:{project_id}" with no
// expiry.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	// scanPrefix is keyPrefix with glob metacharacters escaped for SCAN MATCH.
	scanPrefix string
}

// NewRedisCache wraps a configured client. keyPrefix defaults to "access:".
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix, scanPrefix: escapeGlob(keyPrefix)}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

func (c *RedisCache) key(k Key) string {
	return c.keyPrefix + k.String()
}

func (c *RedisCache) Get(ctx context.Context, key Key) (bool, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val == "1", true, nil
}

func (c *RedisCache) Set(ctx context.Context, key Key, allowed bool) error {
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.client.Set(ctx, c.key(key), val, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key Key) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) DeleteUser(ctx context.Context, userID int64) error {
	return c.deleteMatching(ctx, fmt.Sprintf("%s%d:*", c.scanPrefix, userID))
}

func (c *RedisCache) DeleteProject(ctx context.Context, projectID int64) error {
	return c.deleteMatching(ctx, fmt.Sprintf("%s*:%d", c.scanPrefix, projectID))
}

func (c *RedisCache) Flush(ctx context.Context) error {
	return c.deleteMatching(ctx, c.scanPrefix+"*")
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del %s: %w", pattern, err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del %s: %w", pattern, err)
		}
	}
	return nil
}
