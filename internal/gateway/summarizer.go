package gateway

import (
	"context"
	"strings"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// Summarizer adapts a Gateway into the memory.Summarizer interface, so the
// Memory Store can trigger summarization without importing this package
// (internal/memory.Summarizer is the consumer-side seam; cmd/server wires
// this value in).
type Summarizer struct {
	Gateway      *Gateway
	ProviderName string
	Model        string
	SystemPrompt string
}

const defaultSummarizationPrompt = "Summarize the following conversation turns into a concise third-person note capturing durable facts, preferences, and commitments. Omit small talk."

// Summarize implements memory.Summarizer by issuing a single non-tool
// completion call over the recent messages (spec.md §4.1 summarization
// protocol).
func (s *Summarizer) Summarize(ctx context.Context, tenantID, threadID string, recent []domain.Message) (string, error) {
	prompt := s.SystemPrompt
	if prompt == "" {
		prompt = defaultSummarizationPrompt
	}

	var transcript strings.Builder
	for _, m := range recent {
		transcript.WriteString(string(m.Role))
		transcript.WriteString(": ")
		transcript.WriteString(m.Text)
		transcript.WriteString("\n")
	}

	req := Request{
		Model: s.Model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Text: prompt},
			{Role: domain.RoleUser, Text: transcript.String()},
		},
		MaxTokens: 512,
	}
	result, err := s.Gateway.CompletionsWithTools(ctx, tenantID, threadID, s.ProviderName, req)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
