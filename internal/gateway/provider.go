// Package gateway implements the Tool & LLM Gateway (TG, spec.md §4.2):
// a provider-agnostic completion contract, a tool-call loop bounded by
// max_iterations, and the two memory-backed tool handlers
// (long_term_memory_lookup, store_episodic_memory).
package gateway

import (
	"context"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

// ToolDefinition advertises one callable tool to a Provider (spec.md §4.2).
// InputSchema is a JSON Schema document validated by Gateway before each
// call is dispatched to its handler.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolChoice constrains how a Provider may use tools on one completion call.
type ToolChoice struct {
	Mode string // "auto" | "none" | "any" | "tool"
	Name string // required when Mode == "tool"
}

// Request is one LLM completion call (spec.md §4.2).
type Request struct {
	Model       string
	Messages    []domain.Message
	Tools       []ToolDefinition
	ToolChoice  *ToolChoice
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for one Provider call.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is a Provider's reply: zero or more text messages plus zero or
// more tool calls requested by the model.
type Response struct {
	Text       string
	ToolCalls  []domain.ToolCall
	Usage      Usage
	StopReason string
}

// Provider is the contract every concrete LLM backend implements
// (internal/gateway/anthropic, /openai, /bedrock).
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
