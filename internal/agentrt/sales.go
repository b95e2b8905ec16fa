package agentrt

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
	"github.com/digitalemployee/orchestrator/internal/memory"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// SalesAgent is the Sales Agent (spec.md §4.3): it composes the persona
// role prompt, the matched sentiment prompt, thread context, short- and
// long-term memory into one tool-augmented LLM call, and persists its reply
// back into short-term memory.
type SalesAgent struct {
	Gateway  *gateway.Gateway
	Memory   *memory.Store
	Prompts  PersonaPromptLoader
	Provider string
	Model    string
	Name     string // node name, defaults to "sales"
}

// Run implements workflow.Agent.
func (a *SalesAgent) Run(ctx context.Context, state workflow.ExecutionState) (workflow.Delta, error) {
	name := a.Name
	if name == "" {
		name = "sales"
	}

	role, err := a.Prompts.RolePrompt(ctx, state.AssistantID)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindValidationError, err, "sales agent: role prompt")
	}
	threadPrompt, err := a.Prompts.ThreadPrompt(ctx, state.ThreadID)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindValidationError, err, "sales agent: thread prompt")
	}

	recent, err := a.Memory.GetRecent(ctx, state.TenantID, state.ThreadID, 0)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindMemoryNotFound, err, "sales agent: load recent messages")
	}
	_, longTerm, err := a.Memory.RetrieveContext(ctx, state.TenantID, state.ThreadID, "", 5)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindMemoryNotFound, err, "sales agent: retrieve long-term context")
	}

	system := composeSystemPrompt(role, threadPrompt, state.MatchedPrompt, longTerm)

	messages := make([]domain.Message, 0, len(recent)+len(state.Input)+1)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Text: system})
	messages = append(messages, recent...)
	messages = append(messages, state.Input...)

	req := gateway.Request{
		Model:    a.Model,
		Messages: messages,
		Tools:    a.Gateway.Tools().Definitions(),
	}
	result, err := a.Gateway.CompletionsWithTools(ctx, state.TenantID, state.ThreadID, a.Provider, req)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindLLMError, err, "sales agent: completion")
	}

	if _, err := a.Memory.Append(ctx, state.TenantID, state.ThreadID, []domain.Message{
		{Role: domain.RoleAssistant, Text: result.Text},
	}); err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindMemoryWriteError, err, "sales agent: persist reply")
	}

	output := result.Text
	return workflow.Delta{
		AgentName:    name,
		Output:       &output,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	}, nil
}

func composeSystemPrompt(role, threadPrompt string, matched *workflow.MatchedPrompt, longTerm []memory.LongTermEntry) string {
	var b strings.Builder
	if role != "" {
		b.WriteString(role)
		b.WriteString("\n\n")
	}
	if matched != nil {
		if matched.SystemPrompt != "" {
			b.WriteString(matched.SystemPrompt)
			b.WriteString("\n")
		}
		if matched.Tone != "" || matched.Strategy != "" {
			fmt.Fprintf(&b, "Tone: %s. Strategy: %s.\n", matched.Tone, matched.Strategy)
		}
	}
	if threadPrompt != "" {
		b.WriteString(threadPrompt)
		b.WriteString("\n")
	}
	if len(longTerm) > 0 {
		b.WriteString("Relevant memory:\n")
		for _, e := range longTerm {
			fmt.Fprintf(&b, "- %s\n", e.Content)
		}
	}
	return b.String()
}
