package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/digitalemployee/orchestrator/internal/agentrt"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
	"github.com/digitalemployee/orchestrator/internal/memory"
	"github.com/digitalemployee/orchestrator/internal/telemetry"
)

// defaultAwakeningPrompt is the fallback outreach line used when the LLM
// call fails or returns empty content (spec.md §4.5a "fallback prompt on
// LLM failure/empty content").
const defaultAwakeningPrompt = "最近怎么样？"

const awakeningEventName = "awakening"

// AwakeningStats tallies one batch's outcome (spec.md §4.5a).
type AwakeningStats struct {
	Processed int
	Sent      int
	Skipped   int
	Failed    int
}

// Awakener implements thread-awakening batch processing (spec.md §4.5a): scan
// a batch of inactive threads, build a wake-up message per thread, deliver it
// via the callback sender, and record the attempt.
type Awakener struct {
	Threads  ThreadRepository
	Memory   *memory.Store
	Prompts  agentrt.PersonaPromptLoader
	Gateway  *gateway.Gateway
	Callback CallbackSender

	Provider         string
	Model            string
	Endpoint         string
	CallbackTimeout  time.Duration
	CallbackRetries  int
	InactiveAfter    time.Duration
	BatchSize        int

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Now     func() time.Time
}

func (a *Awakener) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Awakener) logger() telemetry.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return telemetry.NewNoopLogger()
}

// RunBatch scans one batch of inactive threads and processes each,
// per-thread failures are logged and do not abort the batch (spec.md
// §4.5a).
func (a *Awakener) RunBatch(ctx context.Context) (AwakeningStats, error) {
	var stats AwakeningStats

	threads, err := a.Threads.ScanInactiveThreads(ctx, a.InactiveAfter, a.BatchSize)
	if err != nil {
		return stats, err
	}
	for _, th := range threads {
		stats.Processed++
		if !th.HasAssistant() {
			stats.Skipped++
			continue
		}
		if err := a.processThread(ctx, th); err != nil {
			stats.Failed++
			a.logger().Warn(ctx, "awakening: thread processing failed", "thread_id", th.ID, "error", err.Error())
			continue
		}
		stats.Sent++
	}
	return stats, nil
}

func (a *Awakener) processThread(ctx context.Context, th domain.Thread) error {
	startedAt := a.now()
	content, err := a.generateMessage(ctx, th)
	if err != nil || strings.TrimSpace(content) == "" {
		content = defaultAwakeningPrompt
	}
	finishedAt := a.now()

	payload := CallbackPayload{
		AssistantID:     th.AssistantID,
		ThreadID:        th.ID,
		EventID:         awakeningEventName,
		EventTimeMillis: finishedAt.UnixMilli(),
		EventContent: CallbackEventContent{
			RunID:          th.ID,
			Status:         CallbackStatusCompleted,
			Data:           CallbackData{Output: content},
			ProcessingTime: finishedAt.Sub(startedAt).Milliseconds(),
			FinishedAt:     finishedAt.UnixMilli(),
		},
	}
	if err := a.Callback.Send(ctx, a.Endpoint, payload, nil, a.CallbackTimeout, a.CallbackRetries); err != nil {
		return err
	}
	return a.Threads.RecordAwakening(ctx, th.ID)
}

func (a *Awakener) generateMessage(ctx context.Context, th domain.Thread) (string, error) {
	recent, err := a.Memory.GetRecent(ctx, th.TenantID, th.ID, 0)
	if err != nil {
		return "", err
	}
	_, longTerm, err := a.Memory.RetrieveContext(ctx, th.TenantID, th.ID, "", 3)
	if err != nil {
		return "", err
	}
	role, err := a.Prompts.RolePrompt(ctx, th.AssistantID)
	if err != nil {
		return "", err
	}

	system := composeAwakeningPrompt(role, longTerm)
	messages := append([]domain.Message{{Role: domain.RoleSystem, Text: system}}, recent...)

	req := gateway.Request{Model: a.Model, Messages: messages, MaxTokens: 128, Temperature: 0.8}
	result, err := a.Gateway.CompletionsWithTools(ctx, th.TenantID, th.ID, a.Provider, req)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

func composeAwakeningPrompt(role string, longTerm []memory.LongTermEntry) string {
	var b strings.Builder
	b.WriteString("You are reaching out to re-engage a conversation that has gone quiet. ")
	b.WriteString("Write one or two short, warm sentences inviting the user back in. No greetings boilerplate.\n\n")
	if role != "" {
		b.WriteString(role)
		b.WriteString("\n")
	}
	for _, e := range longTerm {
		b.WriteString("- ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}
	return b.String()
}
