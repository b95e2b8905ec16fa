package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
)

// GetTenant fetches a tenant by id. Tenants are created/updated/soft-deleted
// by an external management API; this store reads them and mirrors them
// through UpsertTenant (spec.md §3).
func (s *Store) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	var t domain.Tenant
	err := s.pool.QueryRow(ctx, `SELECT id, status FROM tenants WHERE id=$1`, tenantID).Scan(&t.ID, &t.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, notFound(apperrors.KindTenantNotFound, "tenant", tenantID)
	}
	if err != nil {
		return domain.Tenant{}, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: get tenant")
	}
	return t, nil
}

// UpsertTenant creates a tenant or updates its status if it already exists.
func (s *Store) UpsertTenant(ctx context.Context, t domain.Tenant) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO tenants(id, status) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, updated_at=now()
`, t.ID, t.Status)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: upsert tenant")
	}
	return nil
}
