package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

func TestChatDispatcher_DispatchAndNotify_SendsFinishedCallback(t *testing.T) {
	output := "hello"
	graph := &workflow.Graph{
		Nodes: map[string]workflow.Agent{
			"only": func(_ context.Context, _ workflow.ExecutionState) (workflow.Delta, error) {
				return workflow.Delta{AgentName: "only", Output: &output, InputTokens: 2, OutputTokens: 3}, nil
			},
		},
		Edges: map[string][]string{workflow.Start: {"only"}, "only": {workflow.End}},
	}
	engine := workflow.NewEngine(nil, nil)
	callback := &fakeCallbackSender{}

	d := &ChatDispatcher{Engine: engine, Graph: graph, Callback: callback, Endpoint: "/hook"}
	state := workflow.NewExecutionState("wf1", "th1", "a1", "t1", []domain.Message{{Role: domain.RoleUser, Text: "hi"}})

	err := d.DispatchAndNotify(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "hello", state.Output)
	require.Len(t, callback.sent, 1)
	require.Equal(t, finishedEventName, callback.sent[0].EventID)
	require.Equal(t, CallbackStatusCompleted, callback.sent[0].EventContent.Status)
	require.Equal(t, "hello", callback.sent[0].EventContent.Data.Output)
	require.Equal(t, 2, callback.sent[0].EventContent.Data.InputTokens)
}

func TestChatDispatcher_DispatchAndNotify_StillNotifiesOnRunError(t *testing.T) {
	graph := &workflow.Graph{
		Nodes: map[string]workflow.Agent{
			"only": func(_ context.Context, _ workflow.ExecutionState) (workflow.Delta, error) {
				return workflow.Delta{}, context.DeadlineExceeded
			},
		},
		Edges: map[string][]string{workflow.Start: {"only"}, "only": {workflow.End}},
	}
	engine := workflow.NewEngine(nil, nil)
	callback := &fakeCallbackSender{}
	d := &ChatDispatcher{Engine: engine, Graph: graph, Callback: callback, Endpoint: "/hook"}
	state := workflow.NewExecutionState("wf1", "th1", "a1", "t1", nil)

	err := d.DispatchAndNotify(context.Background(), state)
	require.Error(t, err)
	require.Len(t, callback.sent, 1)
	require.Equal(t, CallbackStatusFailed, callback.sent[0].EventContent.Status)
	require.Equal(t, err.Error(), callback.sent[0].EventContent.Error)
}
