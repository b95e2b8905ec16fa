package cache

import (
	"context"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// TenantLoader fetches a tenant on a cache miss, implemented by
// internal/store/postgres.Store.
type TenantLoader interface {
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
}

// AssistantLoader fetches an assistant on a cache miss.
type AssistantLoader interface {
	GetAssistant(ctx context.Context, tenantID, assistantID string) (domain.Assistant, error)
}

// ThreadLoader fetches a thread on a cache miss.
type ThreadLoader interface {
	GetThread(ctx context.Context, tenantID, threadID string) (domain.Thread, error)
}

// Tenant reads tenant:{id} from cache, falling back to loader and writing
// through on a miss (spec.md §3 "Cached", §6 "Cache invalidation for
// entities": reads are cache-first with database fallback).
func (c *Cache) Tenant(ctx context.Context, loader TenantLoader, tenantID string) (domain.Tenant, error) {
	key := tenantKey(tenantID)
	var t domain.Tenant
	if hit, err := getMsgpack(ctx, c.rdb, key, &t); err != nil {
		return domain.Tenant{}, err
	} else if hit {
		return t, nil
	}
	t, err := loader.GetTenant(ctx, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	_ = setMsgpack(ctx, c.rdb, key, t, entityTTL)
	return t, nil
}

// PutTenant writes a tenant through to cache, used by the writer path after
// a tenant status change so the next read doesn't see stale data (spec.md
// §6: "Tenant/Assistant/Thread caches are refreshed on the writer path").
func (c *Cache) PutTenant(ctx context.Context, t domain.Tenant) error {
	return setMsgpack(ctx, c.rdb, tenantKey(t.ID), t, entityTTL)
}

// Assistant reads assistant:{id} from cache, falling back to loader.
func (c *Cache) Assistant(ctx context.Context, loader AssistantLoader, tenantID, assistantID string) (domain.Assistant, error) {
	key := assistantKey(assistantID)
	var a domain.Assistant
	if hit, err := getMsgpack(ctx, c.rdb, key, &a); err != nil {
		return domain.Assistant{}, err
	} else if hit && a.TenantID == tenantID {
		return a, nil
	}
	a, err := loader.GetAssistant(ctx, tenantID, assistantID)
	if err != nil {
		return domain.Assistant{}, err
	}
	_ = setMsgpack(ctx, c.rdb, key, a, entityTTL)
	return a, nil
}

// PutAssistant writes an assistant through to cache.
func (c *Cache) PutAssistant(ctx context.Context, a domain.Assistant) error {
	return setMsgpack(ctx, c.rdb, assistantKey(a.ID), a, entityTTL)
}

// Thread reads thread:{id} from cache, falling back to loader. A thread's
// status changes on nearly every turn (IDLE/ACTIVE/BUSY/FAILED), so callers
// that need the authoritative status for the BUSY compare-and-swap should go
// straight to the relational store rather than through this cache.
func (c *Cache) Thread(ctx context.Context, loader ThreadLoader, tenantID, threadID string) (domain.Thread, error) {
	key := threadKey(threadID)
	var t domain.Thread
	if hit, err := getMsgpack(ctx, c.rdb, key, &t); err != nil {
		return domain.Thread{}, err
	} else if hit && t.TenantID == tenantID {
		return t, nil
	}
	t, err := loader.GetThread(ctx, tenantID, threadID)
	if err != nil {
		return domain.Thread{}, err
	}
	_ = setMsgpack(ctx, c.rdb, key, t, entityTTL)
	return t, nil
}

// PutThread writes a thread through to cache.
func (c *Cache) PutThread(ctx context.Context, t domain.Thread) error {
	return setMsgpack(ctx, c.rdb, threadKey(t.ID), t, entityTTL)
}

// InvalidateThread drops thread:{id}, used after a status transition
// (TryBeginWorkflow/CompleteWorkflow/FailWorkflow) so a subsequent cached
// read picks up the new status rather than racing the write-through call.
func (c *Cache) InvalidateThread(ctx context.Context, threadID string) error {
	return c.Invalidate(ctx, threadKey(threadID))
}
