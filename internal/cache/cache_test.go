package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/digitalemployee/orchestrator/internal/agentrt"
	"github.com/digitalemployee/orchestrator/internal/domain"
)

// Grounded on the teacher's registry/health_tracker_integration_test.go: one
// Redis container for the package, tests skip rather than fail without
// Docker.
var (
	testContainer testcontainers.Container
	testClient    *redis.Client
	skipRedis     bool
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		}
		testContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		skipRedis = true
		m.Run()
		return
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		skipRedis = true
		m.Run()
		return
	}
	port, err := testContainer.MappedPort(ctx, "6379")
	if err != nil {
		skipRedis = true
		m.Run()
		return
	}
	testClient = redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	if err := testClient.Ping(ctx).Err(); err != nil {
		skipRedis = true
	}
	m.Run()
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	if skipRedis {
		t.Skip("Docker not available, skipping Redis cache test")
	}
	require.NoError(t, testClient.FlushDB(context.Background()).Err())
	return New(testClient)
}

type fakeTenantLoader struct {
	tenant domain.Tenant
	calls  int
}

func (f *fakeTenantLoader) GetTenant(_ context.Context, _ string) (domain.Tenant, error) {
	f.calls++
	return f.tenant, nil
}

func TestCache_Tenant_WritesThroughOnMiss(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	loader := &fakeTenantLoader{tenant: domain.Tenant{ID: "t1", Status: domain.StatusActive}}

	got, err := c.Tenant(ctx, loader, "t1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, got.Status)
	require.Equal(t, 1, loader.calls)

	got, err = c.Tenant(ctx, loader, "t1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, got.Status)
	require.Equal(t, 1, loader.calls, "second read should be served from cache")
}

func TestCache_Thread_IgnoresEntryFromAnotherTenant(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.PutThread(ctx, domain.Thread{ID: "th1", TenantID: "t1"}))

	loader := &fakeThreadLoader{thread: domain.Thread{ID: "th1", TenantID: "t2"}}
	got, err := c.Thread(ctx, loader, "t2", "th1")
	require.NoError(t, err)
	require.Equal(t, "t2", got.TenantID)
	require.Equal(t, 1, loader.calls)
}

type fakeThreadLoader struct {
	thread domain.Thread
	calls  int
}

func (f *fakeThreadLoader) GetThread(_ context.Context, _, _ string) (domain.Thread, error) {
	f.calls++
	return f.thread, nil
}

type fakeAssetsService struct {
	assets []agentrt.Asset
	calls  int
	err    error
}

func (f *fakeAssetsService) ListAssets(_ context.Context, _ string) ([]agentrt.Asset, error) {
	f.calls++
	return f.assets, f.err
}

func TestCachedAssetsService_CachesPerTenant(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	upstream := &fakeAssetsService{assets: []agentrt.Asset{{ID: "a1", Name: "Brochure"}}}
	svc := NewCachedAssetsService(c, upstream)

	got, err := svc.ListAssets(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, upstream.calls)

	got, err = svc.ListAssets(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, upstream.calls, "second call should be served from cache")

	_, err = svc.ListAssets(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, 2, upstream.calls, "a different tenant must not hit t1's cache entry")
}

func TestCache_InvalidateThread_ForcesReload(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.PutThread(ctx, domain.Thread{ID: "th1", TenantID: "t1", Status: domain.ThreadIdle}))

	loader := &fakeThreadLoader{thread: domain.Thread{ID: "th1", TenantID: "t1", Status: domain.ThreadBusy}}
	require.NoError(t, c.InvalidateThread(ctx, "th1"))

	got, err := c.Thread(ctx, loader, "t1", "th1")
	require.NoError(t, err)
	require.Equal(t, domain.ThreadBusy, got.Status)
	require.Equal(t, 1, loader.calls)
}
