// Package orchestrator implements the Task Orchestrator (TO, spec.md §4.5):
// scheduled thread awakening, conversation-preservation deadlines, and
// outbound callback delivery, expressed as plain, Temporal-agnostic
// collaborators. internal/orchestrator/temporal wraps these as Temporal
// workflows/activities; this package owns the business logic so it stays
// unit-testable without a Temporal test environment.
package orchestrator

import (
	"context"
	"time"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// ThreadRepository is the subset of the relational store the orchestrator
// needs: scanning inactive threads for awakening and recording a successful
// awakening attempt (spec.md §4.5a).
type ThreadRepository interface {
	ScanInactiveThreads(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Thread, error)
	RecordAwakening(ctx context.Context, threadID string) error
}

// AssistantRepository resolves the persona bound to a thread.
type AssistantRepository interface {
	GetAssistant(ctx context.Context, tenantID, assistantID string) (domain.Assistant, error)
}

// CallbackSender delivers a single HTTP callback and reports success
// (spec.md §4.5c). Retries/backoff are this interface's implementation's
// concern; the orchestrator calls it once per logical delivery.
type CallbackSender interface {
	Send(ctx context.Context, endpoint string, payload any, headers map[string]string, timeout time.Duration, maxRetries int) error
}

// Callback outcome statuses (spec.md §6 eventContent.status).
const (
	CallbackStatusCompleted = "completed"
	CallbackStatusFailed    = "failed"
)

// CallbackData is the "data" field of CallbackEventContent (spec.md §6):
// the text produced by the event, its token cost, and any business outputs
// synthesized alongside it.
type CallbackData struct {
	Output          string         `json:"output,omitempty"`
	InputTokens     int            `json:"input_tokens,omitempty"`
	OutputTokens    int            `json:"output_tokens,omitempty"`
	BusinessOutputs map[string]any `json:"business_outputs,omitempty"`
}

// CallbackEventContent is the nested "eventContent" object (spec.md §6):
// run identity, completion status, payload data, the error that caused a
// failed status (if any), and timing.
type CallbackEventContent struct {
	RunID          string       `json:"run_id"`
	Status         string       `json:"status"`
	Data           CallbackData `json:"data,omitempty"`
	Error          string       `json:"error,omitempty"`
	ProcessingTime int64        `json:"processing_time"`
	FinishedAt     int64        `json:"finished_at"`
}

// CallbackPayload is the envelope delivered to the upstream system (spec.md
// §4.5c, §6): either an awakening/greeting outreach line or a
// finished-workflow notification, with the outcome nested under
// EventContent.
type CallbackPayload struct {
	AssistantID     string               `json:"assistantId"`
	ThreadID        string               `json:"threadId"`
	EventID         string               `json:"eventId"`
	EventTimeMillis int64                `json:"eventTime"`
	EventContent    CallbackEventContent `json:"eventContent"`
}
