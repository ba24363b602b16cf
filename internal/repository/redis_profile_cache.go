package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

const profileKeyPrefix = "profile:"

// RedisProfileCache stores JSON-encoded profiles under "profile:<userID>".
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

func (c *RedisProfileCache) Get(ctx context.Context, userID string) (*domain.Profile, bool, error) {
	raw, err := c.client.Get(ctx, profileKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, storeErr("read profile cache", err)
	}

	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached profile: %w", err)
	}
	return &p, true, nil
}

func (c *RedisProfileCache) Set(ctx context.Context, p *domain.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKeyPrefix+p.UserID, raw, c.ttl).Err(); err != nil {
		return storeErr("write profile cache", err)
	}
	return nil
}

func (c *RedisProfileCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, profileKeyPrefix+userID).Err(); err != nil {
		return storeErr("invalidate profile cache", err)
	}
	return nil
}
