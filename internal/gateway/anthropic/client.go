// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's Messages
// API to the gateway.Provider contract, grounded on the teacher's
// features/model/anthropic adapter: a narrow MessagesClient interface wraps
// the concrete SDK client so tests can substitute a fake.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
)

// MessagesClient is the subset of the Anthropic SDK used by this adapter.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter.
type Options struct {
	Client       MessagesClient
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements gateway.Provider over Anthropic Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// New builds a Client from an explicit Messages client (tests inject a fake).
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("anthropic: client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model is required")
	}
	return &Client{msg: opts.Client, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP transport.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	c := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(Options{Client: &c.Messages, DefaultModel: defaultModel})
}

// Complete implements gateway.Provider.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages.new: %w", err)
	}
	return translateResponse(msg), nil
}

func (c *Client) prepareRequest(req gateway.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.New("anthropic: max_tokens must be positive")
	}

	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	tools, err := encodeTools(req.Tools)
	if err != nil {
		return nil, err
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	if t := req.Temperature; t > 0 {
		params.Temperature = sdk.Float(t)
	} else if c.temperature > 0 {
		params.Temperature = sdk.Float(c.temperature)
	}
	if req.ToolChoice != nil {
		tc, err := encodeToolChoice(*req.ToolChoice)
		if err != nil {
			return nil, err
		}
		params.ToolChoice = tc
	}
	return params, nil
}

func encodeMessages(msgs []domain.Message) ([]sdk.MessageParam, string, error) {
	out := make([]sdk.MessageParam, 0, len(msgs))
	var system string
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Text
		case domain.RoleUser:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		case domain.RoleAssistant:
			blocks := make([]sdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				var input any
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						return nil, "", fmt.Errorf("anthropic: tool call %q arguments: %w", tc.Name, err)
					}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			out = append(out, sdk.NewAssistantMessage(blocks...))
		case domain.RoleTool:
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		}
	}
	if len(out) == 0 {
		return nil, "", errors.New("anthropic: at least one user/assistant message is required")
	}
	return out, system, nil
}

func encodeTools(defs []gateway.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: def.InputSchema}
		tool := sdk.ToolUnionParamOfTool(schema, def.Name)
		if tool.OfTool != nil {
			tool.OfTool.Description = sdk.String(def.Description)
		}
		out = append(out, tool)
	}
	return out, nil
}

func encodeToolChoice(choice gateway.ToolChoice) (sdk.ToolChoiceUnionParam, error) {
	switch choice.Mode {
	case "", "auto":
		return sdk.ToolChoiceUnionParam{}, nil
	case "none":
		none := sdk.NewToolChoiceNoneParam()
		return sdk.ToolChoiceUnionParam{OfNone: &none}, nil
	case "any":
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}, nil
	case "tool":
		if choice.Name == "" {
			return sdk.ToolChoiceUnionParam{}, errors.New("anthropic: tool choice mode \"tool\" requires a name")
		}
		return sdk.ToolChoiceParamOfTool(choice.Name), nil
	default:
		return sdk.ToolChoiceUnionParam{}, fmt.Errorf("anthropic: unsupported tool choice mode %q", choice.Mode)
	}
}

func translateResponse(msg *sdk.Message) *gateway.Response {
	resp := &gateway.Response{StopReason: string(msg.StopReason)}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, domain.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}
	u := msg.Usage
	resp.Usage = gateway.Usage{
		InputTokens:  int(u.InputTokens),
		OutputTokens: int(u.OutputTokens),
		TotalTokens:  int(u.InputTokens + u.OutputTokens),
	}
	return resp
}
