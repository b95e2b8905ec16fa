// Package openai adapts github.com/openai/openai-go's Chat Completions API
// to the gateway.Provider contract, grounded on the teacher's
// features/model/openai adapter and generalized from go-openai's
// ChatCompletionRequest shape to the official openai-go client.
package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
)

// CompletionsClient is the subset of the openai-go client used here.
type CompletionsClient interface {
	New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Options configures the adapter.
type Options struct {
	Client       CompletionsClient
	DefaultModel string
}

// Client implements gateway.Provider over OpenAI Chat Completions.
type Client struct {
	chat  CompletionsClient
	model string
}

// New builds a Client from an explicit completions client.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("openai: client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{chat: opts.Client, model: opts.DefaultModel}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(Options{Client: &completionsAdapter{c}, DefaultModel: defaultModel})
}

// completionsAdapter narrows the generated client's Chat.Completions field to
// the CompletionsClient interface.
type completionsAdapter struct{ c sdk.Client }

func (a *completionsAdapter) New(ctx context.Context, params sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error) {
	return a.c.Chat.Completions.New(ctx, params, opts...)
}

// Complete implements gateway.Provider.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.model
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(modelID),
		Messages: encodeMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	return translateResponse(resp), nil
}

func encodeMessages(msgs []domain.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Text))
		case domain.RoleUser:
			out = append(out, sdk.UserMessage(m.Text))
		case domain.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Text))
		case domain.RoleTool:
			out = append(out, sdk.ToolMessage(m.Text, m.ToolCallID))
		}
	}
	return out
}

func encodeTools(defs []gateway.ToolDefinition) []sdk.ChatCompletionToolParam {
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, def := range defs {
		out = append(out, sdk.ChatCompletionToolParam{
			Function: sdk.FunctionDefinitionParam{
				Name:        def.Name,
				Description: sdk.String(def.Description),
				Parameters:  sdk.FunctionParameters(def.InputSchema),
			},
		})
	}
	return out
}

func translateResponse(resp *sdk.ChatCompletion) *gateway.Response {
	out := &gateway.Response{}
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		out.Text = choice.Message.Content
		out.StopReason = string(choice.FinishReason)
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	out.Usage = gateway.Usage{
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:  int(resp.Usage.TotalTokens),
	}
	return out
}
