package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/foliosend/foliosend/pkg/models"
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

// Link Cache Operations

// SetLink caches link metadata keyed by slug, the lookup key the
// tracking ingest path uses.
func (c *Cache) SetLink(ctx context.Context, link *models.Link, ttl time.Duration) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("failed to marshal link: %w", err)
	}

	key := fmt.Sprintf("link:%s", link.Slug)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetLink retrieves link metadata from cache
func (c *Cache) GetLink(ctx context.Context, slug string) (*models.Link, error) {
	key := fmt.Sprintf("link:%s", slug)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get link from cache: %w", err)
	}

	var link models.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("failed to unmarshal link: %w", err)
	}

	return &link, nil
}

// DeleteLink removes a link from cache
func (c *Cache) DeleteLink(ctx context.Context, slug string) error {
	key := fmt.Sprintf("link:%s", slug)
	return c.client.Del(ctx, key).Err()
}

// Analytics Cache Operations

// SetLinkAnalytics caches a link's aggregate snapshot
func (c *Cache) SetLinkAnalytics(ctx context.Context, analytics *models.LinkAnalytics, ttl time.Duration) error {
	data, err := json.Marshal(analytics)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}

	key := fmt.Sprintf("analytics:%s", analytics.LinkID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetLinkAnalytics retrieves a link's aggregate snapshot from cache
func (c *Cache) GetLinkAnalytics(ctx context.Context, linkID string) (*models.LinkAnalytics, error) {
	key := fmt.Sprintf("analytics:%s", linkID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get analytics from cache: %w", err)
	}

	var analytics models.LinkAnalytics
	if err := json.Unmarshal(data, &analytics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analytics: %w", err)
	}

	return &analytics, nil
}

// DeleteLinkAnalytics invalidates a link's cached aggregates. Called
// on session close so the next read recomputes.
func (c *Cache) DeleteLinkAnalytics(ctx context.Context, linkID string) error {
	key := fmt.Sprintf("analytics:%s", linkID)
	return c.client.Del(ctx, key).Err()
}

// SetViewerSummaries caches a link's per-viewer breakdown
func (c *Cache) SetViewerSummaries(ctx context.Context, linkID string, viewers []models.ViewerSummary, ttl time.Duration) error {
	data, err := json.Marshal(viewers)
	if err != nil {
		return fmt.Errorf("failed to marshal viewer summaries: %w", err)
	}

	key := fmt.Sprintf("viewers:%s", linkID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetViewerSummaries retrieves a link's per-viewer breakdown from cache
func (c *Cache) GetViewerSummaries(ctx context.Context, linkID string) ([]models.ViewerSummary, error) {
	key := fmt.Sprintf("viewers:%s", linkID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get viewer summaries from cache: %w", err)
	}

	var viewers []models.ViewerSummary
	if err := json.Unmarshal(data, &viewers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal viewer summaries: %w", err)
	}

	return viewers, nil
}

// DeleteViewerSummaries invalidates a link's cached viewer breakdown
func (c *Cache) DeleteViewerSummaries(ctx context.Context, linkID string) error {
	key := fmt.Sprintf("viewers:%s", linkID)
	return c.client.Del(ctx, key).Err()
}

// Live Counter Operations
//
// Raw view counters incremented on the ingest path, so the dashboard
// can show activity before the next aggregate refresh lands.

// IncrementViewCount bumps the live view counter for a link
func (c *Cache) IncrementViewCount(ctx context.Context, linkID, source string) error {
	key := fmt.Sprintf("views:%s:%s", linkID, source)
	return c.client.Incr(ctx, key).Err()
}

// GetViewCount retrieves the live view counter for a link and source
func (c *Cache) GetViewCount(ctx context.Context, linkID, source string) (int64, error) {
	key := fmt.Sprintf("views:%s:%s", linkID, source)
	count, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
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

// Locking Operations
//
// The refresh worker takes a per-link lock so two workers never
// recompute the same link's aggregates concurrently.

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

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
