package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/telemetry"
)

const (
	defaultMaxIterations = 6
	// controlMarker brackets operator-injected control directives in the
	// first user turn of a conversation (spec.md §4.2 "first-iteration
	// sanitization"): anything between the markers is stripped from the
	// content a tool-calling model actually sees, so a user cannot smuggle
	// instructions through the assistant's persona prompt.
	controlMarkerOpen  = "<<CTRL>>"
	controlMarkerClose = "<</CTRL>>"
)

// Options configures a Gateway.
type Options struct {
	Providers       map[string]Provider // keyed by provider name, e.g. "anthropic", "openai", "bedrock"
	DefaultProvider string
	Tools           *ToolRegistry
	MaxIterations   int
	Logger          telemetry.Logger
	Metrics         telemetry.Metrics
}

// Gateway implements the Tool & LLM Gateway (TG, spec.md §4.2): it calls a
// configured Provider, executes any tool calls the model requests against
// the ToolRegistry, and repeats until the model stops requesting tools or
// MaxIterations is reached.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
	tools           *ToolRegistry
	maxIterations   int
	logger          telemetry.Logger
	metrics         telemetry.Metrics
}

// New constructs a Gateway.
func New(opts Options) *Gateway {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	tools := opts.Tools
	if tools == nil {
		tools = NewToolRegistry()
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Gateway{
		providers:       opts.Providers,
		defaultProvider: opts.DefaultProvider,
		tools:           tools,
		maxIterations:   maxIter,
		logger:          logger,
		metrics:         metrics,
	}
}

// Tools exposes the registry so callers can register additional handlers
// before first use or read its tool definitions (the Sales Agent attaches
// Definitions() to its requests).
func (g *Gateway) Tools() *ToolRegistry { return g.tools }

// CompletionResult is the outcome of CompletionsWithTools: the final
// assistant text plus accumulated token usage across every iteration of the
// tool-call loop (spec.md §4.2 "usage accumulates across iterations").
type CompletionResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Iterations   int
}

// CompletionsWithTools drives the bounded tool-call loop (spec.md §4.2): it
// sends messages (with the first user turn sanitized of control markers) to
// the named provider, executes any requested tool calls against the
// registry, appends the tool results as a new turn, and repeats until the
// model stops calling tools or MaxIterations is exhausted.
func (g *Gateway) CompletionsWithTools(ctx context.Context, tenantID, threadID, providerName string, req Request) (*CompletionResult, error) {
	provider, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	messages := sanitizeFirstUserTurn(req.Messages)
	result := &CompletionResult{}

	// firstContent is the first iteration's text, kept so loop exhaustion has
	// something non-empty to fall back to (spec.md §4.2/§8, grounded on
	// original_source's invoke_llm: "response" is always returned, falling
	// back to "first_content" only if the last response's content is empty
	// -- the loop never raises on exhaustion).
	var firstContent string
	var lastResp *Response

	for iter := 0; iter < g.maxIterations; iter++ {
		result.Iterations = iter + 1
		callReq := req
		callReq.Messages = messages

		resp, err := provider.Complete(ctx, callReq)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindLLMError, err, "provider completion failed")
		}
		result.InputTokens += resp.Usage.InputTokens
		result.OutputTokens += resp.Usage.OutputTokens
		lastResp = resp
		if iter == 0 {
			firstContent = resp.Text
		}

		if len(resp.ToolCalls) == 0 {
			result.Text = resp.Text
			return result, nil
		}

		assistantTurn := domain.Message{
			Role:      domain.RoleAssistant,
			Text:      resp.Text,
			ToolCalls: resp.ToolCalls,
			CreatedAt: time.Now(),
		}
		messages = append(messages, assistantTurn)

		for _, call := range resp.ToolCalls {
			toolResult, toolErr := g.tools.Invoke(ctx, tenantID, threadID, call.Name, json.RawMessage(call.Arguments))
			messages = append(messages, toolResultMessage(call, toolResult, toolErr))
			if toolErr != nil {
				g.logger.Warn(ctx, "tool call failed", "tool", call.Name, "err", toolErr)
				g.metrics.IncCounter("gateway.tool_call.error", 1, "tool", call.Name)
			}
		}
	}

	g.logger.Warn(ctx, "tool-call loop exceeded max_iterations, returning last response", "max_iterations", g.maxIterations)
	result.Text = lastResp.Text
	if result.Text == "" {
		result.Text = firstContent
	}
	return result, nil
}

func (g *Gateway) provider(name string) (Provider, error) {
	if name == "" {
		name = g.defaultProvider
	}
	p, ok := g.providers[name]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindLLMError, "no provider registered for %q", name)
	}
	return p, nil
}

func toolResultMessage(call domain.ToolCall, result any, err error) domain.Message {
	var text string
	if err != nil {
		text = `{"error":"` + strings.ReplaceAll(err.Error(), `"`, `'`) + `"}`
	} else {
		data, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			text = `{"error":"failed to encode tool result"}`
		} else {
			text = string(data)
		}
	}
	return domain.Message{
		Role:       domain.RoleTool,
		Text:       text,
		ToolCallID: call.ID,
		CreatedAt:  time.Now(),
	}
}

// sanitizeFirstUserTurn strips operator control directives from the first
// user message (spec.md §4.2) so that downstream model turns never see
// `<<CTRL>>...<</CTRL>>` content injected ahead of the conversation. Returns
// a new slice; the input is not mutated.
func sanitizeFirstUserTurn(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].Role != domain.RoleUser {
			continue
		}
		out[i].Text = stripControlMarkers(out[i].Text)
		return out
	}
	return out
}

func stripControlMarkers(s string) string {
	for {
		start := strings.Index(s, controlMarkerOpen)
		if start < 0 {
			return s
		}
		end := strings.Index(s[start:], controlMarkerClose)
		if end < 0 {
			return s[:start]
		}
		s = s[:start] + s[start+end+len(controlMarkerClose):]
	}
}
