package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ferretex/ferretex-api/internal/redisx"
)

// Cache is the short-TTL read-through cache for product listings. It is never
// a source of truth: every redis failure degrades to a miss, and writers that
// change available stock call Invalidate, which bumps a version key so every
// cached listing falls out at once.
type Cache struct {
	RDB    *redis.Client
	TTL    time.Duration
	Logger *zap.Logger
}

func (c *Cache) log() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Cache) version(ctx context.Context) int64 {
	v, err := c.RDB.Get(ctx, redisx.KeyCatalogVersion).Int64()
	if err != nil && err != redis.Nil {
		c.log().Debug("catalog cache: version read", zap.Error(err))
	}
	return v
}

func (c *Cache) key(ctx context.Context, filterKey string) string {
	return fmt.Sprintf(redisx.KeyCatalogListing, c.version(ctx), filterKey)
}

// GetListing returns a cached serialized listing, or ok=false on miss.
func (c *Cache) GetListing(ctx context.Context, filterKey string) ([]byte, bool) {
	b, err := c.RDB.Get(ctx, c.key(ctx, filterKey)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log().Debug("catalog cache: get", zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (c *Cache) SetListing(ctx context.Context, filterKey string, body []byte) {
	if err := c.RDB.Set(ctx, c.key(ctx, filterKey), body, c.TTL).Err(); err != nil {
		c.log().Debug("catalog cache: set", zap.Error(err))
	}
}

// Invalidate drops all cached listings. Old-version keys expire via TTL.
func (c *Cache) Invalidate(ctx context.Context) {
	if err := c.RDB.Incr(ctx, redisx.KeyCatalogVersion).Err(); err != nil {
		c.log().Warn("catalog cache: invalidate", zap.Error(err))
	}
}
