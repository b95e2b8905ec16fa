package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
)

// GetAssistant fetches an assistant scoped to tenantID, implementing
// orchestrator.AssistantRepository. Scoping the WHERE clause on tenant_id
// rather than checking it after the fact keeps one tenant from ever reading
// another tenant's assistant row, even via a crafted id.
func (s *Store) GetAssistant(ctx context.Context, tenantID, assistantID string) (domain.Assistant, error) {
	var a domain.Assistant
	err := s.pool.QueryRow(ctx, `
SELECT id, tenant_id, status, name, occupation, personality, industry, voice_id
FROM assistants WHERE id=$1 AND tenant_id=$2
`, assistantID, tenantID).Scan(&a.ID, &a.TenantID, &a.Status, &a.Name, &a.Occupation, &a.Personality, &a.Industry, &a.VoiceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assistant{}, notFound(apperrors.KindAssistantNotFound, "assistant", assistantID)
	}
	if err != nil {
		return domain.Assistant{}, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: get assistant")
	}
	return a, nil
}

// UpsertAssistant creates an assistant or updates its mutable fields.
func (s *Store) UpsertAssistant(ctx context.Context, a domain.Assistant) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO assistants(id, tenant_id, status, name, occupation, personality, industry, voice_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status, name=EXCLUDED.name, occupation=EXCLUDED.occupation,
  personality=EXCLUDED.personality, industry=EXCLUDED.industry, voice_id=EXCLUDED.voice_id,
  updated_at=now()
`, a.ID, a.TenantID, a.Status, a.Name, a.Occupation, a.Personality, a.Industry, a.VoiceID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: upsert assistant")
	}
	return nil
}
