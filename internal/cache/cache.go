package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onestopradio/streamcast/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Stream Cache Operations

// SetStream caches a stream record
func (c *Cache) SetStream(ctx context.Context, stream *models.DedicatedStream, ttl time.Duration) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	key := fmt.Sprintf("stream:%s", stream.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetStream retrieves a stream record from cache
func (c *Cache) GetStream(ctx context.Context, streamID string) (*models.DedicatedStream, error) {
	key := fmt.Sprintf("stream:%s", streamID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get stream from cache: %w", err)
	}

	var stream models.DedicatedStream
	if err := json.Unmarshal(data, &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream: %w", err)
	}

	return &stream, nil
}

// DeleteStream removes a stream from cache
func (c *Cache) DeleteStream(ctx context.Context, streamID string) error {
	key := fmt.Sprintf("stream:%s", streamID)
	return c.client.Del(ctx, key).Err()
}

// User Stream Index

// SetUserStream caches the mapping from user to their current stream id
func (c *Cache) SetUserStream(ctx context.Context, userID, streamID string, ttl time.Duration) error {
	key := fmt.Sprintf("user:stream:%s", userID)
	return c.client.Set(ctx, key, streamID, ttl).Err()
}

// GetUserStream retrieves a user's current stream id from cache
func (c *Cache) GetUserStream(ctx context.Context, userID string) (string, error) {
	key := fmt.Sprintf("user:stream:%s", userID)
	streamID, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get user stream from cache: %w", err)
	}
	return streamID, nil
}

// DeleteUserStream removes the user to stream mapping
func (c *Cache) DeleteUserStream(ctx context.Context, userID string) error {
	key := fmt.Sprintf("user:stream:%s", userID)
	return c.client.Del(ctx, key).Err()
}

// Server Status Cache

// SetServerStatus caches the parsed streaming server status so admin
// dashboards do not hammer the daemon.
func (c *Cache) SetServerStatus(ctx context.Context, serverID string, status interface{}, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal server status: %w", err)
	}

	key := fmt.Sprintf("server:status:%s", serverID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetServerStatus retrieves cached server status
func (c *Cache) GetServerStatus(ctx context.Context, serverID string, dest interface{}) (bool, error) {
	key := fmt.Sprintf("server:status:%s", serverID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil // Cache miss
		}
		return false, fmt.Errorf("failed to get server status from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal server status: %w", err)
	}

	return true, nil
}

// Pool Status Cache

// SetPoolStatus caches port pool occupancy
func (c *Cache) SetPoolStatus(ctx context.Context, status *models.PoolStatus, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal pool status: %w", err)
	}

	return c.client.Set(ctx, "pool:status", data, ttl).Err()
}

// GetPoolStatus retrieves cached port pool occupancy
func (c *Cache) GetPoolStatus(ctx context.Context) (*models.PoolStatus, error) {
	data, err := c.client.Get(ctx, "pool:status").Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get pool status from cache: %w", err)
	}

	var status models.PoolStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pool status: %w", err)
	}

	return &status, nil
}

// Stats Cache Operations

// IncrementStat increments a statistic counter
func (c *Cache) IncrementStat(ctx context.Context, stat string) error {
	key := fmt.Sprintf("stats:%s", stat)
	return c.client.Incr(ctx, key).Err()
}

// GetStat retrieves a statistic value
func (c *Cache) GetStat(ctx context.Context, stat string) (int64, error) {
	key := fmt.Sprintf("stats:%s", stat)
	return c.client.Get(ctx, key).Int64()
}

// SetStat sets a statistic value
func (c *Cache) SetStat(ctx context.Context, stat string, value int64, ttl time.Duration) error {
	key := fmt.Sprintf("stats:%s", stat)
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Rate Limiting Operations

// CheckRateLimit checks if a rate limit has been exceeded
func (c *Cache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	rateLimitKey := fmt.Sprintf("ratelimit:%s", key)

	// Increment counter
	count, err := c.client.Incr(ctx, rateLimitKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := c.client.Expire(ctx, rateLimitKey, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set expiry: %w", err)
		}
	}

	// Check if limit exceeded
	return count <= limit, nil
}

// Locking Operations for Distributed Systems

// AcquireLock attempts to acquire a distributed lock
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.SetNX(ctx, key, "locked", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Cache) ReleaseLock(ctx context.Context, resource string) error {
	key := fmt.Sprintf("lock:%s", resource)
	return c.client.Del(ctx, key).Err()
}

// Batch Operations

// DeletePattern deletes all keys matching a pattern
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
	}
	return iter.Err()
}

// Exists checks if a key exists
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetWithJSON gets a value with JSON unmarshaling
func (c *Cache) GetWithJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil // Cache miss
		}
		return fmt.Errorf("failed to get value from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
