package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tag names a resource family whose cached reads go stale together.
// Mutations invalidate whole tags rather than individual keys; correctness
// over precision.
type Tag string

const (
	TagPDFs       Tag = "pdfs"
	TagCategories Tag = "categories"
	TagDownloads  Tag = "downloads"
)

// QueryCache stores serialized query results indexed by invalidation tags.
type QueryCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...Tag) error
	Invalidate(ctx context.Context, tags ...Tag) error
}

// RedisCache implements QueryCache on Redis. Each tag keeps a set of the
// keys written under it; invalidating a tag deletes every member.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to Redis.
func NewRedisCache(addr, password, prefix string) (*RedisCache, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("cache redis addr required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "learnhub:cache"
	}
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
	}, nil
}

// Get loads a cached result into dest. The second return is false on miss.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, c.valueKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode: %w", err)
	}
	return true, nil
}

// Set stores a result and registers its key under each tag.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...Tag) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.valueKey(key), raw, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, c.tagKey(tag), c.valueKey(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate deletes every key written under the given tags.
func (c *RedisCache) Invalidate(ctx context.Context, tags ...Tag) error {
	for _, tag := range tags {
		members, err := c.client.SMembers(ctx, c.tagKey(tag)).Result()
		if err != nil {
			return fmt.Errorf("cache invalidate: %w", err)
		}
		pipe := c.client.TxPipeline()
		if len(members) > 0 {
			pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, c.tagKey(tag))
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("cache invalidate: %w", err)
		}
	}
	return nil
}

func (c *RedisCache) valueKey(key string) string {
	return fmt.Sprintf("%s:v:%s", c.prefix, key)
}

func (c *RedisCache) tagKey(tag Tag) string {
	return fmt.Sprintf("%s:t:%s", c.prefix, tag)
}
