package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenAgent(name string, in, out int, action string) Agent {
	return func(_ context.Context, _ ExecutionState) (Delta, error) {
		return Delta{
			AgentName:   name,
			Actions:     []string{action},
			InputTokens: in,
			OutputTokens: out,
			Values:      map[string]any{"ran": true},
		}, nil
	}
}

func TestEngineRun_ParallelAndSequentialTokenSumEquivalent(t *testing.T) {
	sentiment := tokenAgent("sentiment", 10, 5, "emit_audio")
	intent := tokenAgent("intent", 7, 3, "emit_text")
	output := "hello"
	sales := func(_ context.Context, s ExecutionState) (Delta, error) {
		return Delta{AgentName: "sales", Output: &output, InputTokens: 2, OutputTokens: 1}, nil
	}

	for _, parallel := range []bool{true, false} {
		g := NewChatGraph(sentiment, intent, sales, parallel)
		state := NewExecutionState("wf1", "th1", "as1", "t1", nil)
		eng := NewEngine(nil, nil)
		err := eng.Run(context.Background(), g, state)
		require.NoError(t, err)

		require.Equal(t, 28, state.InputTokens+state.OutputTokens)
		require.ElementsMatch(t, []string{"sentiment", "intent", "sales"}, state.ActiveAgents)
		require.ElementsMatch(t, []string{"emit_audio", "emit_text"}, state.Actions)
		require.Equal(t, "hello", state.Output)
		require.Contains(t, state.Values, "sentiment")
		require.Contains(t, state.Values, "intent")
	}
}

func TestEngineRun_AgentFailureMarksWorkflowError(t *testing.T) {
	sentiment := tokenAgent("sentiment", 1, 1, "a")
	intent := func(_ context.Context, _ ExecutionState) (Delta, error) {
		return Delta{}, assertErr
	}
	sales := tokenAgent("sales", 1, 1, "b")

	g := NewChatGraph(sentiment, intent, sales, true)
	state := NewExecutionState("wf2", "th2", "as2", "t2", nil)
	eng := NewEngine(nil, nil)
	err := eng.Run(context.Background(), g, state)
	require.Error(t, err)
	require.Equal(t, 1, state.ExceptionCount)
	require.NotEmpty(t, state.ErrorMessage)
}

var assertErr = errFixture("boom")

type errFixture string

func (e errFixture) Error() string { return string(e) }
