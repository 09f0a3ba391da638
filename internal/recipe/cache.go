package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"pantrychef/internal/logging"
)

const catalogCacheKey = "pantrychef:catalog"

// CachedStore decorates a Store with a redis-backed snapshot of the full
// catalog. Only AllRecipes is cached; a rating upsert changes the stored
// aggregates, so it drops the snapshot. Cache failures fall back to the
// underlying store.
type CachedStore struct {
	Store
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore wraps the given store with a redis catalog cache.
func NewCachedStore(store Store, addr string, ttl time.Duration) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &CachedStore{Store: store, client: client, ttl: ttl}, nil
}

// AllRecipes returns the cached catalog snapshot when present, loading and
// caching it otherwise.
func (c *CachedStore) AllRecipes(ctx context.Context) ([]*Recipe, error) {
	data, err := c.client.Get(ctx, catalogCacheKey).Bytes()
	if err == nil {
		var recipes []*Recipe
		if err := json.Unmarshal(data, &recipes); err == nil {
			return recipes, nil
		}
		// Unreadable snapshot; drop it and reload.
		c.client.Del(ctx, catalogCacheKey)
	} else if err != redis.Nil {
		logging.Warn("catalog cache read failed", zap.Error(err))
	}

	recipes, err := c.Store.AllRecipes(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(recipes); err == nil {
		if err := c.client.Set(ctx, catalogCacheKey, data, c.ttl).Err(); err != nil {
			logging.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return recipes, nil
}

// UpsertRating writes through to the underlying store and invalidates the
// catalog snapshot, since the recipe's aggregates changed.
func (c *CachedStore) UpsertRating(ctx context.Context, recipeID, userID string, rating int, review string) error {
	if err := c.Store.UpsertRating(ctx, recipeID, userID, rating, review); err != nil {
		return err
	}
	if err := c.client.Del(ctx, catalogCacheKey).Err(); err != nil {
		logging.Warn("catalog cache invalidation failed", zap.Error(err))
	}
	return nil
}

// Close releases the redis connection.
func (c *CachedStore) Close() error {
	return c.client.Close()
}
