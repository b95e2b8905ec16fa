package agentrt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/gateway"
)

// gatewayClassifier implements SentimentClassifier over a gateway.Gateway
// with a small, fixed classifier prompt (spec.md §4.3 "calls TG with a small
// classifier prompt"). The model is asked to reply with a single JSON object
// so the result can be decoded without free-text parsing.
type gatewayClassifier struct {
	gw       *gateway.Gateway
	provider string
	model    string
}

// NewGatewayClassifier builds a SentimentClassifier that issues one
// tool-free completion per call against the given provider/model.
func NewGatewayClassifier(gw *gateway.Gateway, provider, model string) SentimentClassifier {
	return &gatewayClassifier{gw: gw, provider: provider, model: model}
}

const classifierSystemPrompt = `You are a sentiment classifier. Read the latest user turns and reply with ` +
	`exactly one JSON object: {"level":"positive"|"neutral"|"negative","score":0.0-1.0}. No prose.`

type classifierPayload struct {
	Level string  `json:"level"`
	Score float64 `json:"score"`
}

func (c *gatewayClassifier) Classify(ctx context.Context, tenantID, threadID string, input []string) (Classification, error) {
	req := gateway.Request{
		Model: c.model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Text: classifierSystemPrompt},
			{Role: domain.RoleUser, Text: strings.Join(input, "\n")},
		},
		MaxTokens: 128,
	}
	result, err := c.gw.CompletionsWithTools(ctx, tenantID, threadID, c.provider, req)
	if err != nil {
		return Classification{}, err
	}
	var payload classifierPayload
	if err := decodeJSONObject(result.Text, &payload); err != nil {
		return Classification{}, fmt.Errorf("agentrt: classifier response: %w", err)
	}
	return Classification{Level: payload.Level, Score: payload.Score}, nil
}

// gatewayIntentExtractor implements IntentExtractor over a gateway.Gateway
// with a single structured-output prompt: one LLM call producing a JSON
// object with the appointment, assets and audio_output sub-intents.
type gatewayIntentExtractor struct {
	gw       *gateway.Gateway
	provider string
	model    string
}

// NewGatewayIntentExtractor builds an IntentExtractor over the given
// provider/model.
func NewGatewayIntentExtractor(gw *gateway.Gateway, provider, model string) IntentExtractor {
	return &gatewayIntentExtractor{gw: gw, provider: provider, model: model}
}

const intentSystemPrompt = `You extract structured intent from a conversation turn. Reply with exactly ` +
	`one JSON object of this shape, no prose:
{
  "appointment": {"detected": bool, "strength": 0.0-1.0, "service": string, "name": string, "phone": string, "time": string},
  "assets": {"detected": bool, "keywords": [string]},
  "audio_output": {"detected": bool, "confidence": 0.0-1.0}
}`

type intentPayload struct {
	Appointment struct {
		Detected bool    `json:"detected"`
		Strength float64 `json:"strength"`
		Service  string  `json:"service"`
		Name     string  `json:"name"`
		Phone    string  `json:"phone"`
		Time     string  `json:"time"`
	} `json:"appointment"`
	Assets struct {
		Detected bool     `json:"detected"`
		Keywords []string `json:"keywords"`
	} `json:"assets"`
	AudioOutput struct {
		Detected   bool    `json:"detected"`
		Confidence float64 `json:"confidence"`
	} `json:"audio_output"`
}

func (e *gatewayIntentExtractor) Extract(ctx context.Context, tenantID, threadID string, input []string) (IntentExtraction, error) {
	req := gateway.Request{
		Model: e.model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Text: intentSystemPrompt},
			{Role: domain.RoleUser, Text: strings.Join(input, "\n")},
		},
		MaxTokens: 256,
	}
	result, err := e.gw.CompletionsWithTools(ctx, tenantID, threadID, e.provider, req)
	if err != nil {
		return IntentExtraction{}, err
	}
	var payload intentPayload
	if err := decodeJSONObject(result.Text, &payload); err != nil {
		return IntentExtraction{}, fmt.Errorf("agentrt: intent extractor response: %w", err)
	}
	var out IntentExtraction
	out.Appointment.Detected = payload.Appointment.Detected
	out.Appointment.Strength = payload.Appointment.Strength
	out.Appointment.Service = payload.Appointment.Service
	out.Appointment.Name = payload.Appointment.Name
	out.Appointment.Phone = payload.Appointment.Phone
	out.Appointment.Time = payload.Appointment.Time
	out.Assets.Detected = payload.Assets.Detected
	out.Assets.Keywords = payload.Assets.Keywords
	out.AudioOutput.Detected = payload.AudioOutput.Detected
	out.AudioOutput.Confidence = payload.AudioOutput.Confidence
	return out, nil
}

// decodeJSONObject unmarshals the text between the first '{' and the last '}'
// in text, tolerant of a model wrapping its answer in prose or a code fence.
// A reply holding more than one JSON object fails to decode.
func decodeJSONObject(text string, v any) error {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object found in response")
	}
	return json.Unmarshal([]byte(text[start:end+1]), v)
}
