// Package agentrt implements the Agent Runtime (AR, spec.md §4.3): the
// Sentiment/Prompt-Matching Agent, the Intent Agent and the Sales Agent,
// each shaped as a workflow.Agent node for the Workflow Graph Engine.
//
// The agents consult a small set of external collaborators that spec.md §5
// explicitly keeps outside the core (persona prompt templates, the document
// Assets Service) and the two LLM calls they make. Those are modeled here as
// narrow ports so the agents stay testable without a live implementation of
// any of them. No text-to-speech port is declared in this package.
package agentrt

import "context"

// Asset is one item returned by the external Assets Service, before local
// ranking.
type Asset struct {
	ID      string
	Name    string
	Content string
	Remark  string
}

// AssetsService is the external, tenant-scoped document/asset lookup the
// Intent Agent queries when assets_intent.detected is true (spec.md §4.3).
// Its own caching (1-day tenant-scoped TTL, spec.md §6) is the collaborator's
// concern; the core only ranks and truncates what it returns.
type AssetsService interface {
	ListAssets(ctx context.Context, tenantID string) ([]Asset, error)
}

// PersonaPrompt is one pre-authored (sentiment_level x journey_stage)
// fragment the Sentiment Agent looks up (spec.md §4.3).
type PersonaPrompt struct {
	SystemPrompt string
	Tone         string
	Strategy     string
}

// PersonaPromptLoader resolves the persona-prompt matrix and the assistant's
// base role prompt. Both are externally authored content (spec.md §1 "persona
// prompt template loading" is an external collaborator); the core only
// performs the (sentiment, journey_stage) lookup and string composition.
type PersonaPromptLoader interface {
	// MatchPrompt returns the persona-prompt fragment for a
	// (sentimentLevel, journeyStage) pair belonging to assistantID.
	MatchPrompt(ctx context.Context, assistantID, sentimentLevel, journeyStage string) (PersonaPrompt, error)
	// RolePrompt returns the assistant's base persona role prompt (name,
	// occupation, personality, industry) composed into a system prompt.
	RolePrompt(ctx context.Context, assistantID string) (string, error)
	// ThreadPrompt returns any thread-scoped context prompt (spec.md §4.3
	// "thread-context prompt resolved from thread_id").
	ThreadPrompt(ctx context.Context, threadID string) (string, error)
}

// Classification is the raw sentiment classifier output, before journey
// stage derivation and persona-prompt lookup are folded in.
type Classification struct {
	Level string
	Score float64
}

// SentimentClassifier performs the small classifier LLM call (spec.md §4.3
// "calls TG with a small classifier prompt"). Implemented over
// gateway.Gateway by NewGatewayClassifier; kept as an interface so tests can
// substitute a scripted classifier without a fake Provider.
type SentimentClassifier interface {
	Classify(ctx context.Context, tenantID, threadID string, input []string) (Classification, error)
}

// IntentExtraction is the Intent Agent's single structured LLM call output
// (spec.md §4.3), before threshold overrides and business-output synthesis.
type IntentExtraction struct {
	Appointment struct {
		Detected bool
		Strength float64
		Service  string
		Name     string
		Phone    string
		Time     string
	}
	Assets struct {
		Detected bool
		Keywords []string
	}
	AudioOutput struct {
		Detected   bool
		Confidence float64
	}
}

// IntentExtractor performs the Intent Agent's single LLM call.
type IntentExtractor interface {
	Extract(ctx context.Context, tenantID, threadID string, input []string) (IntentExtraction, error)
}
