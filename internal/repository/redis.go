package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"todone/internal/config"
	"todone/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisPresenceRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	client := redis.NewClient(options)

	return client
}

func NewRedisPresenceRepository(client *redis.Client, ttl time.Duration) *RedisPresenceRepository {
	if ttl <= 0 {
		ttl = models.DefaultRedisTTL
	}
	return &RedisPresenceRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisPresenceRepository) SetPresence(ctx context.Context, presence *models.Presence) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("presence:%s", presence.ProjectID)
	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	if err := r.client.HSet(ctx, key, presence.UserID, data).Err(); err != nil {
		return fmt.Errorf("failed to set presence in redis: %w", err)
	}
	r.client.Expire(ctx, key, r.ttl)

	return nil
}

func (r *RedisPresenceRepository) GetPresence(ctx context.Context, projectID string) ([]models.Presence, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("presence:%s", projectID)
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get presence from redis: %w", err)
	}

	cutoff := time.Now().Add(-r.ttl)
	out := make([]models.Presence, 0, len(vals))
	for _, raw := range vals {
		var p models.Presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
		}
		if p.SeenAt.Before(cutoff) {
			continue
		}
		out = append(out, p)
	}

	return out, nil
}

func (r *RedisPresenceRepository) ClearPresence(ctx context.Context, projectID, userID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("presence:%s", projectID)
	if err := r.client.HDel(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("failed to delete presence from redis: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) CheckRateLimit(ctx context.Context, userID string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("rate_limit:%s", userID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
