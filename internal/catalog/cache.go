package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/krishamaze/repairshop-api/internal/quote"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func spareKey(product string, issue quote.IssueKind, model string) string {
	return fmt.Sprintf("spares:%s:%s:%s",
		strings.ToLower(strings.TrimSpace(product)),
		issue,
		strings.ToLower(strings.TrimSpace(model)),
	)
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// CachedClient is a read-through cache in front of a catalog client. Empty
// result sets are cached too: "no priced spares" is a real answer.
type CachedClient struct {
	Inner Client
	Cache *Cache
}

// SpareOptions serves from cache when possible, falling back to the inner client.
func (c CachedClient) SpareOptions(ctx context.Context, product string, issue quote.IssueKind, model string) ([]SpareVariety, error) {
	key := spareKey(product, issue, model)
	var cached []SpareVariety
	if hit, err := c.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	varieties, err := c.Inner.SpareOptions(ctx, product, issue, model)
	if err != nil {
		return nil, err
	}
	_ = c.Cache.SetJSON(ctx, key, varieties)
	return varieties, nil
}
