package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/storefront/storefront-api/internal/core/domain"
)

const (
	defaultProductTTL = 5 * time.Minute
	bestSellersKey    = "products:best_sellers"
)

// ProductCache is a read-through cache for single products and the
// best-seller listing.
// Key format: product:<id>, products:best_sellers
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProductCache creates a ProductCache wrapping the given Redis client.
// A non-positive ttl falls back to five minutes.
func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = defaultProductTTL
	}
	return &ProductCache{client: client, ttl: ttl}
}

// Get reports (nil, false, nil) on a cache miss.
func (c *ProductCache) Get(ctx context.Context, id string) (*domain.Product, bool, error) {
	var p domain.Product
	ok, err := c.load(ctx, c.key(id), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &p, true, nil
}

func (c *ProductCache) Set(ctx context.Context, p *domain.Product) error {
	return c.store(ctx, c.key(p.ID), p)
}

func (c *ProductCache) GetBestSellers(ctx context.Context) ([]*domain.Product, bool, error) {
	var products []*domain.Product
	ok, err := c.load(ctx, bestSellersKey, &products)
	if err != nil || !ok {
		return nil, false, err
	}
	return products, true, nil
}

func (c *ProductCache) SetBestSellers(ctx context.Context, products []*domain.Product) error {
	if products == nil {
		products = []*domain.Product{}
	}
	return c.store(ctx, bestSellersKey, products)
}

// Invalidate drops the product entry and the best-seller listing, since any
// mutation may change which products are best sellers.
func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id), bestSellersKey).Err(); err != nil {
		return fmt.Errorf("product cache invalidate: %w", err)
	}
	return nil
}

func (c *ProductCache) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("product cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("product cache decode %s: %w", key, err)
	}
	return true, nil
}

func (c *ProductCache) store(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("product cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("product cache set %s: %w", key, err)
	}
	return nil
}

func (c *ProductCache) key(id string) string {
	return "product:" + id
}
