package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCacheTTL bounds how long an approval can take to reach embedded widgets when
	// invalidation is missed.
	DefaultCacheTTL = 30 * time.Second

	responseKeyPrefix   = "widget:response:"
	generationKeyPrefix = "widget:generation:"
	generationTTL       = 7 * 24 * time.Hour
)

// RedisCache keeps widget responses in Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (cache *RedisCache) Generation(ctx context.Context, projectID string) (int64, error) {
	generation, err := cache.client.Get(ctx, generationKeyPrefix+projectID).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get widget generation: %w", err)
	}
	return generation, nil
}

func (cache *RedisCache) Get(ctx context.Context, key Key) (Response, bool, error) {
	data, err := cache.client.Get(ctx, responseKeyPrefix+key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Response{}, false, nil
		}
		return Response{}, false, fmt.Errorf("redis get widget response: %w", err)
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, false, fmt.Errorf("unmarshal widget response: %w", err)
	}
	return response, true, nil
}

func (cache *RedisCache) Set(ctx context.Context, key Key, response Response) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal widget response: %w", err)
	}
	if err := cache.client.Set(ctx, responseKeyPrefix+key.String(), data, cache.ttl).Err(); err != nil {
		return fmt.Errorf("redis set widget response: %w", err)
	}
	return nil
}

// InvalidateProject bumps the project's generation; stale responses expire with their TTL.
func (cache *RedisCache) InvalidateProject(ctx context.Context, projectID string) error {
	generationKey := generationKeyPrefix + projectID
	pipeline := cache.client.TxPipeline()
	pipeline.Incr(ctx, generationKey)
	pipeline.Expire(ctx, generationKey, generationTTL)
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("redis bump widget generation: %w", err)
	}
	return nil
}
