package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisSessionRepo implements domain.SessionRepository using Redis.
// Each user owns at most one key, "session:<userID>" -> access token,
// so storing a new session replaces the previous one.
type RedisSessionRepo struct {
	client *redis.Client
}

// NewRedisSessionRepo creates a new repository instance.
func NewRedisSessionRepo(client *redis.Client) *RedisSessionRepo {
	return &RedisSessionRepo{client: client}
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

// Put saves the session token with a Time-To-Live matching the token lifetime.
func (r *RedisSessionRepo) Put(ctx context.Context, userID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", ttl)
	}

	if err := r.client.Set(ctx, sessionKey(userID), token, ttl).Err(); err != nil {
		return storeErr("store session", err)
	}
	return nil
}

// Get returns the tracked token. Only a missing key is reported as not found.
func (r *RedisSessionRepo) Get(ctx context.Context, userID string) (string, bool, error) {
	token, err := r.client.Get(ctx, sessionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, storeErr("read session", err)
	}
	return token, true, nil
}

// Delete removes the session immediately. Deleting a missing key is not an error.
func (r *RedisSessionRepo) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return storeErr("delete session", err)
	}
	return nil
}
