package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/digitalemployee/orchestrator/internal/agentrt"
	"github.com/digitalemployee/orchestrator/internal/apperrors"
)

// CachedAssetsService decorates an agentrt.AssetsService with the 1-day
// tenant-scoped cache spec.md §4.3 describes ("query the external Assets
// Service keyed by tenant, with a 1-day tenant-scoped cache"). It implements
// agentrt.AssetsService itself, so the Intent Agent is unaware it is talking
// to a cache rather than the live service.
type CachedAssetsService struct {
	cache    *Cache
	upstream agentrt.AssetsService
}

// NewCachedAssetsService wraps upstream with the assets:{tenant_id} cache.
func NewCachedAssetsService(c *Cache, upstream agentrt.AssetsService) *CachedAssetsService {
	return &CachedAssetsService{cache: c, upstream: upstream}
}

// ListAssets implements agentrt.AssetsService: JSON (not msgpack, matching
// spec.md §6's key-value cache table, which lists `assets:{tenant_id}` as
// JSON while the entity keys are msgpack) cache-first with upstream
// fallback and write-through on a miss.
func (s *CachedAssetsService) ListAssets(ctx context.Context, tenantID string) ([]agentrt.Asset, error) {
	key := assetsKey(tenantID)

	raw, err := s.cache.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var assets []agentrt.Asset
		if jsonErr := json.Unmarshal(raw, &assets); jsonErr == nil {
			return assets, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "cache: get "+key)
	}

	assets, err := s.upstream.ListAssets(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if raw, jsonErr := json.Marshal(assets); jsonErr == nil {
		_ = s.cache.rdb.Set(ctx, key, raw, assetsTTL).Err()
	}
	return assets, nil
}
