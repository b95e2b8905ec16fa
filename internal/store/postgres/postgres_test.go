package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// Grounded on the teacher's registry/store/mongo test setup: a single
// container started for the package, tests skipped (not failed) when Docker
// is unavailable in the sandbox.
var (
	testContainer testcontainers.Container
	testDSN       string
	skipPG        bool
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
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "orchestrator_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		}
		testContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		skipPG = true
		m.Run()
		return
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		skipPG = true
		m.Run()
		return
	}
	port, err := testContainer.MappedPort(ctx, "5432")
	if err != nil {
		skipPG = true
		m.Run()
		return
	}
	testDSN = fmt.Sprintf("postgres://postgres:test@%s:%s/orchestrator_test?sslmode=disable", host, port.Port())
	m.Run()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	if skipPG {
		t.Skip("Docker not available, skipping Postgres store test")
	}
	ctx := context.Background()
	s, err := New(ctx, testDSN)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	t.Cleanup(s.Close)
	return s
}

func TestStore_TenantRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertTenant(ctx, domain.Tenant{ID: "t1", Status: domain.StatusActive}))

	got, err := s.GetTenant(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, got.Status)

	_, err = s.GetTenant(ctx, "missing")
	require.Error(t, err)
}

func TestStore_AssistantIsScopedToTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTenant(ctx, domain.Tenant{ID: "t1", Status: domain.StatusActive}))
	require.NoError(t, s.UpsertTenant(ctx, domain.Tenant{ID: "t2", Status: domain.StatusActive}))
	require.NoError(t, s.UpsertAssistant(ctx, domain.Assistant{ID: "a1", TenantID: "t1", Name: "Mia"}))

	got, err := s.GetAssistant(ctx, "t1", "a1")
	require.NoError(t, err)
	require.Equal(t, "Mia", got.Name)

	_, err = s.GetAssistant(ctx, "t2", "a1")
	require.Error(t, err)
}

func TestStore_ThreadLifecycleTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTenant(ctx, domain.Tenant{ID: "t1", Status: domain.StatusActive}))
	require.NoError(t, s.UpsertAssistant(ctx, domain.Assistant{ID: "a1", TenantID: "t1"}))
	require.NoError(t, s.CreateThread(ctx, domain.Thread{
		ID: "th1", TenantID: "t1", Customer: domain.CustomerAttributes{"name": "Alex"},
	}))

	require.NoError(t, s.BindAssistant(ctx, "th1", "a1"))

	began, err := s.TryBeginWorkflow(ctx, "th1")
	require.NoError(t, err)
	require.True(t, began)

	// A second caller must not also win the CAS while BUSY.
	began, err = s.TryBeginWorkflow(ctx, "th1")
	require.NoError(t, err)
	require.False(t, began)

	require.NoError(t, s.CompleteWorkflow(ctx, "th1"))

	got, err := s.GetThread(ctx, "t1", "th1")
	require.NoError(t, err)
	require.Equal(t, domain.ThreadActive, got.Status)
	require.Equal(t, "a1", got.AssistantID)
	require.Equal(t, "Alex", got.Customer["name"])

	_, err = s.GetThread(ctx, "other-tenant", "th1")
	require.Error(t, err)
}

func TestStore_ScanInactiveThreadsAndRecordAwakening(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertTenant(ctx, domain.Tenant{ID: "t1", Status: domain.StatusActive}))
	require.NoError(t, s.UpsertAssistant(ctx, domain.Assistant{ID: "a1", TenantID: "t1"}))
	require.NoError(t, s.CreateThread(ctx, domain.Thread{ID: "th1", TenantID: "t1"}))
	require.NoError(t, s.BindAssistant(ctx, "th1", "a1"))

	inactive, err := s.ScanInactiveThreads(ctx, time.Millisecond, 10)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	require.Equal(t, "th1", inactive[0].ID)

	require.NoError(t, s.RecordAwakening(ctx, "th1"))

	got, err := s.GetThread(ctx, "t1", "th1")
	require.NoError(t, err)
	require.Equal(t, 1, got.AwakeningAttemptCount)
	require.False(t, got.LastAwakeningAt.IsZero())

	inactive, err = s.ScanInactiveThreads(ctx, time.Hour, 10)
	require.NoError(t, err)
	require.Empty(t, inactive)
}
