package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceCache fronts the attempts table for nonce lookups during submit.
// The database row stays the source of truth; a cache miss falls back to
// the repository.
type NonceCache struct {
	helper *CacheHelper
}

// NewNonceCache creates a nonce cache with the integrity prefix
func NewNonceCache(client *redis.Client) *NonceCache {
	return &NonceCache{helper: NewCacheHelper(client, "nonce:")}
}

// Put stores the nonce for the lifetime of the attempt window.
func (n *NonceCache) Put(ctx context.Context, attemptID uint, nonce string, ttl time.Duration) error {
	return n.helper.SetString(ctx, fmt.Sprintf("attempt:%d", attemptID), nonce, ttl)
}

// Get returns the cached nonce, or ErrCacheNotFound on a miss.
func (n *NonceCache) Get(ctx context.Context, attemptID uint) (string, error) {
	return n.helper.GetString(ctx, fmt.Sprintf("attempt:%d", attemptID))
}

// Invalidate drops the nonce after the attempt leaves in_progress.
func (n *NonceCache) Invalidate(ctx context.Context, attemptID uint) error {
	return n.helper.Delete(ctx, fmt.Sprintf("attempt:%d", attemptID))
}

// RateBudget is a fixed-window request counter per actor, backed by
// redis INCR + EXPIRE. With no redis client every request is allowed
// (graceful degradation, same as the cache helpers).
type RateBudget struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateBudget creates a fixed-window budget of limit requests per window
func NewRateBudget(client *redis.Client, limit int, window time.Duration) *RateBudget {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateBudget{client: client, limit: limit, window: window}
}

// Allow consumes one unit of the actor's budget and reports whether the
// request fits in the current window.
func (r *RateBudget) Allow(ctx context.Context, actorID string, operation string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	key := fmt.Sprintf("rate:%s:%s", operation, actorID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate budget incr error: %w", err)
	}

	// First hit in the window owns the expiry.
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, fmt.Errorf("rate budget expire error: %w", err)
		}
	}

	return count <= int64(r.limit), nil
}

// Remaining reports the unused budget in the current window.
func (r *RateBudget) Remaining(ctx context.Context, actorID string, operation string) (int, error) {
	if r.client == nil {
		return r.limit, nil
	}

	key := fmt.Sprintf("rate:%s:%s", operation, actorID)
	count, err := r.client.Get(ctx, key).Int()
	if err != nil {
		if err == redis.Nil {
			return r.limit, nil
		}
		return 0, fmt.Errorf("rate budget get error: %w", err)
	}

	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
