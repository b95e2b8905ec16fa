// Package bedrock adapts the AWS Bedrock Converse API to the
// gateway.Provider contract, grounded on the teacher's features/model/bedrock
// adapter: a narrow RuntimeClient interface wraps *bedrockruntime.Client so
// the adapter is unit-testable without live AWS credentials.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
)

// RuntimeClient is the subset of *bedrockruntime.Client used by this adapter.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the adapter.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// Client implements gateway.Provider over AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTokens    int
	temperature  float32
}

// New builds a Client from an explicit runtime client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model is required")
	}
	return &Client{runtime: opts.Runtime, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// Complete implements gateway.Provider.
func (c *Client) Complete(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	messages, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
	}
	if system != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: system}}
	}
	if len(req.Tools) > 0 {
		toolConfig, err := encodeTools(req.Tools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = toolConfig
	}

	cfg := &brtypes.InferenceConfiguration{}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		v := int32(maxTokens)
		cfg.MaxTokens = &v
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = float64(c.temperature)
	}
	if temp > 0 {
		v := float32(temp)
		cfg.Temperature = &v
	}
	input.InferenceConfig = cfg

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}
	return translateResponse(out)
}

func encodeMessages(msgs []domain.Message) ([]brtypes.Message, string, error) {
	out := make([]brtypes.Message, 0, len(msgs))
	var system string
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			if system != "" {
				system += "\n"
			}
			system += m.Text
		case domain.RoleUser:
			out = append(out, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}},
			})
		case domain.RoleAssistant:
			blocks := make([]brtypes.ContentBlock, 0, 1+len(m.ToolCalls))
			if m.Text != "" {
				blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: m.Text})
			}
			for _, tc := range m.ToolCalls {
				var input document.Interface
				if tc.Arguments != "" {
					var decoded map[string]any
					if err := json.Unmarshal([]byte(tc.Arguments), &decoded); err != nil {
						return nil, "", fmt.Errorf("bedrock: tool call %q arguments: %w", tc.Name, err)
					}
					input = document.NewLazyDocument(decoded)
				}
				blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
					Value: brtypes.ToolUseBlock{ToolUseId: aws.String(tc.ID), Name: aws.String(tc.Name), Input: input},
				})
			}
			out = append(out, brtypes.Message{Role: brtypes.ConversationRoleAssistant, Content: blocks})
		case domain.RoleTool:
			out = append(out, brtypes.Message{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberToolResult{
					Value: brtypes.ToolResultBlock{
						ToolUseId: aws.String(m.ToolCallID),
						Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: m.Text}},
					},
				}},
			})
		}
	}
	if len(out) == 0 {
		return nil, "", errors.New("bedrock: at least one user/assistant message is required")
	}
	return out, system, nil
}

func encodeTools(defs []gateway.ToolDefinition) (*brtypes.ToolConfiguration, error) {
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(def.Name),
				Description: aws.String(def.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(def.InputSchema)},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: tools}, nil
}

func translateResponse(out *bedrockruntime.ConverseOutput) (*gateway.Response, error) {
	resp := &gateway.Response{}
	msgOutput, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, errors.New("bedrock: converse response did not contain a message")
	}
	for _, block := range msgOutput.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			var args string
			if v.Value.Input != nil {
				raw, err := v.Value.Input.MarshalSmithyDocument()
				if err == nil {
					args = string(raw)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, domain.ToolCall{
				ID:        aws.ToString(v.Value.ToolUseId),
				Name:      aws.ToString(v.Value.Name),
				Arguments: args,
			})
		}
	}
	resp.StopReason = string(out.StopReason)
	if out.Usage != nil {
		resp.Usage = gateway.Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}
