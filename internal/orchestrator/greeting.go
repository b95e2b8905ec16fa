package orchestrator

import (
	"context"
	"strings"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// defaultGreetingPrompt is used when the LLM call fails or returns empty
// content, mirroring the awakening fallback (spec.md §4.5a, supplemented
// per original_source's on-create greeting message).
const defaultGreetingPrompt = "你好！很高兴认识你，有什么我可以帮忙的吗？"

const greetingEventName = "greeting"

// Greet sends a one-off opening message for a newly created thread. It is a
// thin specialization of Awakener.processThread: same context-building and
// delivery path, triggered once at Thread creation rather than on a
// recurring schedule, and using a distinct event id/fallback line so the
// upstream system can tell the two apart.
func (a *Awakener) Greet(ctx context.Context, th domain.Thread) error {
	startedAt := a.now()
	content, err := a.generateMessage(ctx, th)
	if err != nil || strings.TrimSpace(content) == "" {
		content = defaultGreetingPrompt
	}
	finishedAt := a.now()
	payload := CallbackPayload{
		AssistantID:     th.AssistantID,
		ThreadID:        th.ID,
		EventID:         greetingEventName,
		EventTimeMillis: finishedAt.UnixMilli(),
		EventContent: CallbackEventContent{
			RunID:          th.ID,
			Status:         CallbackStatusCompleted,
			Data:           CallbackData{Output: content},
			ProcessingTime: finishedAt.Sub(startedAt).Milliseconds(),
			FinishedAt:     finishedAt.UnixMilli(),
		},
	}
	return a.Callback.Send(ctx, a.Endpoint, payload, nil, a.CallbackTimeout, a.CallbackRetries)
}
