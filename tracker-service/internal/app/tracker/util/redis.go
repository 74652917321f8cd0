package util

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pricetrack/tracker-service/internal/app/tracker/entity"

	"github.com/redis/go-redis/v9"
)

// groupsCacheKey holds the serialized group listing. Only the listing is
// cached: price data always comes from the database.
const groupsCacheKey = "groups:all"

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

func (r *RedisClient) SetGroups(ctx context.Context, groups []entity.GroupSummary, ttl time.Duration) error {
	data, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("failed to marshal groups: %w", err)
	}

	if err := r.client.Set(ctx, groupsCacheKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set groups in cache: %w", err)
	}

	return nil
}

// GetGroups returns the cached listing, or (nil, nil) on a miss.
func (r *RedisClient) GetGroups(ctx context.Context) ([]entity.GroupSummary, error) {
	data, err := r.client.Get(ctx, groupsCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get groups from cache: %w", err)
	}

	var groups []entity.GroupSummary
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("failed to unmarshal groups: %w", err)
	}

	return groups, nil
}

func (r *RedisClient) DeleteGroups(ctx context.Context) error {
	if err := r.client.Del(ctx, groupsCacheKey).Err(); err != nil {
		return fmt.Errorf("failed to delete groups from cache: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
