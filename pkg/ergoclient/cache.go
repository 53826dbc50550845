package ergoclient

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shark-explorer/shark-indexer/pkg/logger"
	"github.com/shark-explorer/shark-indexer/pkg/logger/slogx"
)

// Blocks and headers are immutable once the node serves them by id, so the
// cache never needs invalidation. A cache outage degrades to a direct fetch.
const (
	cacheKeyBlock  = "ergo:block:"
	cacheKeyHeader = "ergo:header:"
)

func (c *Client) cacheGet(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	data, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.DebugContext(ctx, "cache read failed", slogx.String("key", key), slogx.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		logger.DebugContext(ctx, "dropping malformed cache entry", slogx.String("key", key), slogx.Error(err))
		return false
	}
	return true
}

func (c *Client) cacheSet(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		logger.DebugContext(ctx, "cache write failed", slogx.String("key", key), slogx.Error(err))
	}
}
