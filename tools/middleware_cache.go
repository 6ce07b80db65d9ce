package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/petal-labs/azresponses/cache"
)

// CacheKeyFunc generates a cache key from tool name and arguments.
type CacheKeyFunc func(toolName string, args json.RawMessage) string

// DefaultCacheKey hashes the tool name and arguments. Arguments decoded
// from a function call are re-encoded with sorted keys, so equal argument
// objects hash equally.
func DefaultCacheKey(toolName string, args json.RawMessage) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(args)
	return hex.EncodeToString(h.Sum(nil))
}

// WithCache creates middleware that memoizes successful tool results in c.
// Concurrent identical calls share one execution.
func WithCache(c *cache.Cache[any]) Middleware {
	return WithCacheCustomKey(c, DefaultCacheKey)
}

// WithCacheCustomKey creates caching middleware with a custom key function.
func WithCacheCustomKey(c *cache.Cache[any], keyFunc CacheKeyFunc) Middleware {
	return func(next ToolCallFunc) ToolCallFunc {
		return func(ctx context.Context, args json.RawMessage) (any, error) {
			key := keyFunc(toolName(ctx), args)
			return c.GetOrFetch(ctx, key, func(ctx context.Context) (any, error) {
				return next(ctx, args)
			})
		}
	}
}
