// Package cache is the write-through Redis cache for Tenant/Assistant/Thread
// entities and the tenant-scoped Assets Service lookup (spec.md §6's
// key-value cache layout, §3 "Cached", §4.3's "1-day tenant-scoped cache").
// Grounded on the teacher's registry/result_stream.go Redis usage: a single
// *redis.Client held by a small struct, one key-builder function per entity,
// errors.Is(err, redis.Nil) for cache misses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
)

// Entity TTLs and key prefixes (spec.md §6).
const (
	entityTTL = 0 // tenant/assistant/thread entries are refreshed write-through, not expired
	assetsTTL = 24 * time.Hour
)

// Cache wraps a single Redis client with the key conventions this repo
// standardizes on. It has no knowledge of the relational store or the
// Assets Service; callers compose it with those through the read/write-
// through helpers in entity.go and assets.go.
type Cache struct {
	rdb *redis.Client
}

// New wraps an already-configured redis.Client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func tenantKey(id string) string    { return fmt.Sprintf("tenant:%s", id) }
func assistantKey(id string) string { return fmt.Sprintf("assistant:%s", id) }
func threadKey(id string) string    { return fmt.Sprintf("thread:%s", id) }
func assetsKey(tenantID string) string { return fmt.Sprintf("assets:%s", tenantID) }

// getMsgpack reads key and decodes it into v, reporting (false, nil) on a
// clean miss.
func getMsgpack(ctx context.Context, rdb *redis.Client, key string, v any) (bool, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "cache: get "+key)
	}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return false, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "cache: decode "+key)
	}
	return true, nil
}

// setMsgpack encodes v and writes it to key with the given ttl (0 = no
// expiry).
func setMsgpack(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidationError, err, "cache: encode "+key)
	}
	if err := rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "cache: set "+key)
	}
	return nil
}

// Invalidate removes a single key, used by the write-through helpers when
// the underlying row changes shape enough that a stale cached copy would be
// actively wrong (e.g. a tenant moved to INACTIVE).
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "cache: invalidate "+key)
	}
	return nil
}
