package agentrt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/memory"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

type stubClassifier struct {
	out Classification
	err error
}

func (s *stubClassifier) Classify(_ context.Context, _, _ string, _ []string) (Classification, error) {
	return s.out, s.err
}

func TestJourneyStage_Thresholds(t *testing.T) {
	require.Equal(t, journeyAwareness, journeyStage(0))
	require.Equal(t, journeyAwareness, journeyStage(2))
	require.Equal(t, journeyConsideration, journeyStage(3))
	require.Equal(t, journeyConsideration, journeyStage(5))
	require.Equal(t, journeyDecision, journeyStage(6))
	require.Equal(t, journeyDecision, journeyStage(20))
}

func TestSentimentAgent_Run_LooksUpMatrixByLevelAndStage(t *testing.T) {
	store := memory.New(memory.Options{Backend: memory.NewFakeBackend(), NShort: 20, NSummary: 1000})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := store.Append(ctx, "t1", "th1", []domain.Message{{Role: domain.RoleUser, Text: "hi"}})
		require.NoError(t, err)
	}

	matrix := NewStaticPromptMatrix(map[string]PersonaPrompt{
		"positive/consideration": {SystemPrompt: "be warm", Tone: "friendly", Strategy: "upsell"},
	})
	loader := NewMatrixPromptLoader(matrix, nil, nil)

	agent := &SentimentAgent{
		Classifier: &stubClassifier{out: Classification{Level: "positive", Score: 0.9}},
		Prompts:    loader,
		Memory:     store,
	}
	delta, err := agent.Run(ctx, workflow.ExecutionState{TenantID: "t1", ThreadID: "th1", AssistantID: "a1"})
	require.NoError(t, err)
	require.Equal(t, "consideration", delta.SentimentAnalysis.JourneyStage)
	require.Equal(t, "positive", delta.SentimentAnalysis.Level)
	require.Equal(t, "be warm", delta.MatchedPrompt.SystemPrompt)
	require.Equal(t, "upsell", delta.MatchedPrompt.Strategy)
}

func TestSentimentAgent_Run_NoMatchingPromptReturnsError(t *testing.T) {
	store := memory.New(memory.Options{Backend: memory.NewFakeBackend(), NShort: 20, NSummary: 1000})
	loader := NewMatrixPromptLoader(NewStaticPromptMatrix(nil), nil, nil)
	agent := &SentimentAgent{
		Classifier: &stubClassifier{out: Classification{Level: "negative", Score: 0.2}},
		Prompts:    loader,
		Memory:     store,
	}
	_, err := agent.Run(context.Background(), workflow.ExecutionState{TenantID: "t1", ThreadID: "th1"})
	require.Error(t, err)
}
