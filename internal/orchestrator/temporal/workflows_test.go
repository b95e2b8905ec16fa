package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/orchestrator"
)

func TestThreadAwakeningWorkflow_ReturnsActivityStats(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.ScanAndAwakenBatch).Return(orchestrator.AwakeningStats{Processed: 3, Sent: 2, Skipped: 1}, nil)

	env.ExecuteWorkflow(ThreadAwakeningWorkflow)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var stats orchestrator.AwakeningStats
	require.NoError(t, env.GetWorkflowResult(&stats))
	require.Equal(t, 3, stats.Processed)
	require.Equal(t, 2, stats.Sent)
}

func TestConversationPreservationWorkflow_SkipsWhenNotNeeded(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.CheckPreservationNeeded, "t1", "th1").
		Return(PreservationCheck{Needed: false, Reason: "empty_buffer"}, nil)

	env.ExecuteWorkflow(ConversationPreservationWorkflow, "t1", "th1", time.Millisecond)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result orchestrator.PreservationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, orchestrator.PreservationSkipped, result.Outcome)
	require.Equal(t, "empty_buffer", result.Reason)
}

func TestConversationPreservationWorkflow_PreservesWhenNeeded(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	var a *Activities
	env.OnActivity(a.CheckPreservationNeeded, "t1", "th1").
		Return(PreservationCheck{Needed: true}, nil)
	env.OnActivity(a.EvaluateAndPreserve, "t1", "th1").
		Return(orchestrator.PreservationResult{Outcome: orchestrator.PreservationPreserved, EntryID: "e1", MessageCount: 4}, nil)

	env.ExecuteWorkflow(ConversationPreservationWorkflow, "t1", "th1", time.Millisecond)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result orchestrator.PreservationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, orchestrator.PreservationPreserved, result.Outcome)
	require.Equal(t, "e1", result.EntryID)
}

func TestGreetingWorkflow_InvokesGreetActivity(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()

	thread := domain.Thread{ID: "th1", TenantID: "t1", AssistantID: "a1"}

	var a *Activities
	env.OnActivity(a.GreetThread, thread).Return(nil)

	env.ExecuteWorkflow(GreetingWorkflow, thread)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
}
