// Package postgres is the relational store for Tenant, Assistant and Thread
// (spec.md §3): the entities that need transactional, tenant-scoped
// mutation, as opposed to the append-heavy conversation buffers the Memory
// Store owns. Grounded on the teacher pack's intelligencedev-manifold
// internal/auth.Store: a single pgxpool.Pool wrapped by one Store type, an
// idempotent InitSchema, and plain parameterized SQL rather than an ORM.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
)

// Store is the Postgres-backed repository for Tenant, Assistant and Thread.
// It implements orchestrator.ThreadRepository and
// orchestrator.AssistantRepository directly; the API layer uses its wider
// method set for tenant/assistant lookups and thread lifecycle transitions.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres using dsn and returns a Store. Callers should
// call InitSchema once at startup before serving traffic.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: ping")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// InitSchema creates every table this store depends on, if they do not
// already exist. Safe to call on every process start.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id         TEXT PRIMARY KEY,
  status     TEXT NOT NULL DEFAULT 'ACTIVE',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS assistants (
  id          TEXT PRIMARY KEY,
  tenant_id   TEXT NOT NULL REFERENCES tenants(id),
  status      TEXT NOT NULL DEFAULT 'ACTIVE',
  name        TEXT NOT NULL DEFAULT '',
  occupation  TEXT NOT NULL DEFAULT '',
  personality TEXT NOT NULL DEFAULT '',
  industry    TEXT NOT NULL DEFAULT '',
  voice_id    TEXT NOT NULL DEFAULT '',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_assistants_tenant ON assistants(tenant_id);

CREATE TABLE IF NOT EXISTS threads (
  id                      TEXT PRIMARY KEY,
  tenant_id               TEXT NOT NULL REFERENCES tenants(id),
  assistant_id            TEXT NOT NULL DEFAULT '',
  status                  TEXT NOT NULL DEFAULT 'IDLE',
  customer                JSONB NOT NULL DEFAULT '{}',
  last_awakening_at       TIMESTAMPTZ,
  awakening_attempt_count INT NOT NULL DEFAULT 0,
  created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_threads_tenant ON threads(tenant_id);
CREATE INDEX IF NOT EXISTS idx_threads_awakening ON threads(status, last_awakening_at);
`)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: init schema")
	}
	return nil
}

func notFound(kind apperrors.Kind, entity, id string) error {
	return apperrors.Newf(kind, "%s %q not found", entity, id)
}
