package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
)

// CreateThread inserts a new thread, idle and unbound unless an assistant id
// is already known (e.g. a tenant with exactly one assistant).
func (s *Store) CreateThread(ctx context.Context, t domain.Thread) error {
	customer, err := json.Marshal(t.Customer)
	if err != nil {
		return apperrors.Wrap(apperrors.KindValidationError, err, "postgres: marshal customer attributes")
	}
	if t.Status == "" {
		t.Status = domain.ThreadIdle
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO threads(id, tenant_id, assistant_id, status, customer)
VALUES ($1,$2,$3,$4,$5)
`, t.ID, t.TenantID, t.AssistantID, t.Status, customer)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: create thread")
	}
	return nil
}

// GetThread fetches a thread scoped to tenantID, returning ThreadNotFound if
// absent and ThreadAccessDenied if it exists under a different tenant.
func (s *Store) GetThread(ctx context.Context, tenantID, threadID string) (domain.Thread, error) {
	var t domain.Thread
	var customer []byte
	var lastAwakening *time.Time
	err := s.pool.QueryRow(ctx, `
SELECT id, tenant_id, assistant_id, status, customer, last_awakening_at, awakening_attempt_count
FROM threads WHERE id=$1
`, threadID).Scan(&t.ID, &t.TenantID, &t.AssistantID, &t.Status, &customer, &lastAwakening, &t.AwakeningAttemptCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Thread{}, notFound(apperrors.KindThreadNotFound, "thread", threadID)
	}
	if err != nil {
		return domain.Thread{}, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: get thread")
	}
	if t.TenantID != tenantID {
		return domain.Thread{}, apperrors.New(apperrors.KindThreadAccessDenied, "thread belongs to a different tenant")
	}
	if lastAwakening != nil {
		t.LastAwakeningAt = *lastAwakening
	}
	if len(customer) > 0 {
		if err := json.Unmarshal(customer, &t.Customer); err != nil {
			return domain.Thread{}, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: unmarshal customer attributes")
		}
	}
	return t, nil
}

// BindAssistant attaches an assistant to a thread, enforcing that the
// assistant's tenant matches the thread's tenant (spec.md §3 invariant).
func (s *Store) BindAssistant(ctx context.Context, threadID, assistantID string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE threads SET assistant_id=$2, updated_at=now()
WHERE id=$1 AND tenant_id = (SELECT tenant_id FROM assistants WHERE id=$2)
`, threadID, assistantID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: bind assistant")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindTenantMismatch, "assistant tenant does not match thread tenant")
	}
	return nil
}

// TryBeginWorkflow transitions a thread from IDLE/ACTIVE/FAILED to BUSY, the
// compare-and-swap enforcing at-most-one-in-flight-workflow-per-thread
// (spec.md §3, §5). It reports false without error when the thread is
// already BUSY, letting the caller apply the bounded-wait/ThreadBusy policy
// (spec.md §5, ThreadBusyWait) rather than failing outright.
func (s *Store) TryBeginWorkflow(ctx context.Context, threadID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE threads SET status='BUSY', updated_at=now()
WHERE id=$1 AND status IN ('IDLE','ACTIVE','FAILED')
`, threadID)
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: begin workflow")
	}
	return tag.RowsAffected() == 1, nil
}

// CompleteWorkflow transitions a BUSY thread back to ACTIVE on success.
func (s *Store) CompleteWorkflow(ctx context.Context, threadID string) error {
	return s.setStatus(ctx, threadID, domain.ThreadActive)
}

// FailWorkflow transitions a BUSY thread to FAILED on a WorkflowError
// (spec.md §4.4/§6: the next user turn may transition it back to ACTIVE).
func (s *Store) FailWorkflow(ctx context.Context, threadID string) error {
	return s.setStatus(ctx, threadID, domain.ThreadFailed)
}

func (s *Store) setStatus(ctx context.Context, threadID string, status domain.ThreadStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE threads SET status=$2, updated_at=now() WHERE id=$1`, threadID, status)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: set thread status")
	}
	return nil
}

// ScanInactiveThreads implements orchestrator.ThreadRepository: threads with
// a bound assistant whose last_awakening_at (or, absent that, created_at) is
// older than olderThan, oldest first, capped at limit.
func (s *Store) ScanInactiveThreads(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Thread, error) {
	cutoff := time.Now().Add(-olderThan)
	rows, err := s.pool.Query(ctx, `
SELECT id, tenant_id, assistant_id, status, customer, last_awakening_at, awakening_attempt_count
FROM threads
WHERE assistant_id <> ''
  AND status <> 'BUSY'
  AND COALESCE(last_awakening_at, created_at) < $1
ORDER BY COALESCE(last_awakening_at, created_at) ASC
LIMIT $2
`, cutoff, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: scan inactive threads")
	}
	defer rows.Close()

	var out []domain.Thread
	for rows.Next() {
		var t domain.Thread
		var customer []byte
		var lastAwakening *time.Time
		if err := rows.Scan(&t.ID, &t.TenantID, &t.AssistantID, &t.Status, &customer, &lastAwakening, &t.AwakeningAttemptCount); err != nil {
			return nil, apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: scan inactive threads row")
		}
		if lastAwakening != nil {
			t.LastAwakeningAt = *lastAwakening
		}
		if len(customer) > 0 {
			_ = json.Unmarshal(customer, &t.Customer)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordAwakening implements orchestrator.ThreadRepository: bumps the
// attempt counter and stamps last_awakening_at so the next scan's cutoff
// excludes this thread until it goes quiet again.
func (s *Store) RecordAwakening(ctx context.Context, threadID string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE threads
SET last_awakening_at=now(), awakening_attempt_count=awakening_attempt_count+1, updated_at=now()
WHERE id=$1
`, threadID)
	if err != nil {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "postgres: record awakening")
	}
	return nil
}
