package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorage is a Storage backed by Redis, for deployments where the
// profile state lives off-host. Keys are namespaced to avoid
// collisions with other tenants of the same database.
type RedisStorage struct {
	client    *redis.Client
	namespace string
	logger    Logger
}

// RedisStorageOptions configures the Redis storage
type RedisStorageOptions struct {
	RedisURL  string
	Namespace string // Key namespace, e.g. "storefront"
	Logger    Logger // Optional logger
}

// NewRedisStorage creates a Redis-backed storage and verifies
// connectivity with a bounded ping.
func NewRedisStorage(opts RedisStorageOptions) (*RedisStorage, error) {
	logger := opts.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}

	if opts.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required: %w", ErrMissingConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"error":     err.Error(),
			"redis_url": opts.RedisURL,
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}

	client := redis.NewClient(redisOpt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", map[string]interface{}{
			"error":     err.Error(),
			"namespace": opts.Namespace,
		})
		return nil, fmt.Errorf("failed to connect to Redis: %w", ErrConnectionFailed)
	}

	logger.Info("Redis storage connected", map[string]interface{}{
		"namespace": opts.Namespace,
	})

	return &RedisStorage{
		client:    client,
		namespace: opts.Namespace,
		logger:    logger,
	}, nil
}

// formatKey formats a key with the namespace
func (r *RedisStorage) formatKey(key string) string {
	if r.namespace != "" {
		return fmt.Sprintf("%s:%s", r.namespace, key)
	}
	return key
}

// Load reads a stored document; absent keys yield (nil, nil)
func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.formatKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Storage read failed", map[string]interface{}{
			"operation": "storage_load",
			"key":       key,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Save stores a document under a key with no expiry
func (r *RedisStorage) Save(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.formatKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	r.logger.Debug("Storage save", map[string]interface{}{
		"operation":  "storage_save",
		"key":        key,
		"value_size": len(value),
	})
	return nil
}

// Delete removes a document; deleting an absent key is a no-op
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.formatKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Exists checks if a key holds a document
func (r *RedisStorage) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.formatKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return n > 0, nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// HealthCheck verifies Redis connectivity
func (r *RedisStorage) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
