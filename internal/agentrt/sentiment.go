package agentrt

import (
	"context"
	"fmt"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/memory"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// journey stage thresholds on user-turn count, spec.md §4.3: <=2 awareness,
// 3-5 consideration, >=6 decision.
const (
	journeyAwareness    = "awareness"
	journeyConsideration = "consideration"
	journeyDecision     = "decision"
)

func journeyStage(userTurns int) string {
	switch {
	case userTurns <= 2:
		return journeyAwareness
	case userTurns <= 5:
		return journeyConsideration
	default:
		return journeyDecision
	}
}

// SentimentAgent is the Sentiment/Prompt-Matching Agent (spec.md §4.3): it
// classifies the turn's sentiment, derives a journey stage from short-term
// user-turn count, and looks up the matching persona-prompt fragment.
type SentimentAgent struct {
	Classifier SentimentClassifier
	Prompts    PersonaPromptLoader
	Memory     *memory.Store
	Name       string // node name recorded on the Delta, defaults to "sentiment"
}

// Run implements workflow.Agent.
func (a *SentimentAgent) Run(ctx context.Context, state workflow.ExecutionState) (workflow.Delta, error) {
	name := a.Name
	if name == "" {
		name = "sentiment"
	}

	recent, err := a.Memory.GetRecent(ctx, state.TenantID, state.ThreadID, 0)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindMemoryNotFound, err, "sentiment agent: load recent messages")
	}
	userTurns := 0
	for _, m := range recent {
		if m.IsUser() {
			userTurns++
		}
	}
	stage := journeyStage(userTurns)

	texts := inputTexts(state.Input)
	cls, err := a.Classifier.Classify(ctx, state.TenantID, state.ThreadID, texts)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindLLMError, err, "sentiment agent: classify")
	}

	fragment, err := a.Prompts.MatchPrompt(ctx, state.AssistantID, cls.Level, stage)
	if err != nil {
		return workflow.Delta{}, apperrors.Wrap(apperrors.KindValidationError, err, "sentiment agent: match persona prompt")
	}

	return workflow.Delta{
		AgentName: name,
		SentimentAnalysis: &workflow.SentimentResult{
			Level:        cls.Level,
			Score:        cls.Score,
			JourneyStage: stage,
		},
		MatchedPrompt: &workflow.MatchedPrompt{
			SystemPrompt: fragment.SystemPrompt,
			Tone:         fragment.Tone,
			Strategy:     fragment.Strategy,
		},
		Values: map[string]any{"user_turns": userTurns},
	}, nil
}

func inputTexts(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text != "" {
			out = append(out, m.Text)
		}
	}
	return out
}

// staticPromptMatrix is a PersonaPromptLoader.MatchPrompt implementation
// backed by an in-memory (sentiment_level x journey_stage) matrix, the
// default wiring named in spec.md §4.3. A production deployment typically
// swaps this for a loader backed by the external template store; this type
// exists so the matrix has a concrete, testable default.
type staticPromptMatrix map[string]map[string]PersonaPrompt

// NewStaticPromptMatrix builds a PersonaPromptLoader.MatchPrompt lookup table
// from a flat map keyed "sentimentLevel/journeyStage".
func NewStaticPromptMatrix(entries map[string]PersonaPrompt) staticPromptMatrix {
	matrix := staticPromptMatrix{}
	for key, prompt := range entries {
		level, stage := splitMatrixKey(key)
		if matrix[level] == nil {
			matrix[level] = map[string]PersonaPrompt{}
		}
		matrix[level][stage] = prompt
	}
	return matrix
}

func splitMatrixKey(key string) (level, stage string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func (m staticPromptMatrix) lookup(level, stage string) (PersonaPrompt, bool) {
	byStage, ok := m[level]
	if !ok {
		return PersonaPrompt{}, false
	}
	p, ok := byStage[stage]
	return p, ok
}

// matrixPromptLoader adapts a staticPromptMatrix plus assistant-level role
// and thread prompt sources into a full PersonaPromptLoader.
type matrixPromptLoader struct {
	matrix       staticPromptMatrix
	roleByID     map[string]string
	threadPrompt map[string]string
}

// NewMatrixPromptLoader builds a PersonaPromptLoader whose MatchPrompt is
// served entirely from an in-memory matrix and whose Role/Thread prompts are
// served from simple lookup tables, suitable for tests and for small
// deployments that keep persona content in configuration rather than an
// external template service.
func NewMatrixPromptLoader(matrix staticPromptMatrix, roleByAssistant, threadPrompts map[string]string) PersonaPromptLoader {
	return &matrixPromptLoader{matrix: matrix, roleByID: roleByAssistant, threadPrompt: threadPrompts}
}

func (l *matrixPromptLoader) MatchPrompt(_ context.Context, _, sentimentLevel, journeyStage string) (PersonaPrompt, error) {
	if p, ok := l.matrix.lookup(sentimentLevel, journeyStage); ok {
		return p, nil
	}
	return PersonaPrompt{}, fmt.Errorf("agentrt: no persona prompt for sentiment=%q journey_stage=%q", sentimentLevel, journeyStage)
}

func (l *matrixPromptLoader) RolePrompt(_ context.Context, assistantID string) (string, error) {
	return l.roleByID[assistantID], nil
}

func (l *matrixPromptLoader) ThreadPrompt(_ context.Context, threadID string) (string, error) {
	return l.threadPrompt[threadID], nil
}
