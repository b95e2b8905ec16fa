package temporal

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/digitalemployee/orchestrator/internal/domain"
	orchpkg "github.com/digitalemployee/orchestrator/internal/orchestrator"
	wfpkg "github.com/digitalemployee/orchestrator/internal/workflow"
)

// defaultRetryPolicy mirrors original_source's RetryPolicy: 1s initial
// backoff, 30s cap, 3 attempts, non-retryable on validation errors.
var defaultRetryPolicy = &temporal.RetryPolicy{
	InitialInterval:        time.Second,
	MaximumInterval:        30 * time.Second,
	MaximumAttempts:        ActivityOptions.Attempts,
	NonRetryableErrorTypes: []string{"ValidationError"},
}

func activityOptions(timeout time.Duration) workflow.ActivityOptions {
	return workflow.ActivityOptions{StartToCloseTimeout: timeout, RetryPolicy: defaultRetryPolicy}
}

// ThreadAwakeningWorkflow scans and processes a single batch of inactive
// threads (spec.md §4.5a), triggered on a recurring Temporal Schedule.
// Grounded on original_source's ThreadAwakeningWorkflow.run: one activity
// call per batch rather than per-thread activities, since RunBatch already
// contains the per-thread failure isolation the original implements inline.
func ThreadAwakeningWorkflow(ctx workflow.Context) (orchpkg.AwakeningStats, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(ActivityOptions.Long))
	var a *Activities
	var stats orchpkg.AwakeningStats
	err := workflow.ExecuteActivity(ctx, a.ScanAndAwakenBatch).Get(ctx, &stats)
	return stats, err
}

// GreetingWorkflow sends the one-off opening message for a newly created
// thread (supplemented feature, a thin specialization of awakening
// triggered on Thread creation rather than on a recurring schedule).
func GreetingWorkflow(ctx workflow.Context, thread domain.Thread) error {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(ActivityOptions.Long))
	var a *Activities
	return workflow.ExecuteActivity(ctx, a.GreetThread, thread).Get(ctx, nil)
}

// ConversationPreservationWorkflow waits until the preservation deadline,
// then checks/evaluates/writes the thread's short-term buffer to long-term
// memory (spec.md §4.5b). Grounded on
// original_source's ConversationPreservationWorkflow.run: sleep, then a
// linear check -> quality -> write pipeline, each step short-circuiting on a
// negative result.
func ConversationPreservationWorkflow(ctx workflow.Context, tenantID, threadID string, wait time.Duration) (orchpkg.PreservationResult, error) {
	if err := workflow.Sleep(ctx, wait); err != nil {
		return orchpkg.PreservationResult{}, err
	}

	shortCtx := workflow.WithActivityOptions(ctx, activityOptions(ActivityOptions.Short))
	var a *Activities

	var check PreservationCheck
	if err := workflow.ExecuteActivity(shortCtx, a.CheckPreservationNeeded, tenantID, threadID).Get(shortCtx, &check); err != nil {
		return orchpkg.PreservationResult{}, err
	}
	if !check.Needed {
		return orchpkg.PreservationResult{Outcome: orchpkg.PreservationSkipped, Reason: check.Reason}, nil
	}

	longCtx := workflow.WithActivityOptions(ctx, activityOptions(ActivityOptions.Long))
	var result orchpkg.PreservationResult
	err := workflow.ExecuteActivity(longCtx, a.EvaluateAndPreserve, tenantID, threadID).Get(longCtx, &result)
	return result, err
}

// ChatDispatchWorkflow is the asynchronous chat dispatch path (spec.md §6
// "dispatch(workflow) -> final_state ... used by the background path"): it
// runs the Workflow Graph Engine for one turn through an activity (model
// calls and memory writes are non-deterministic and therefore live outside
// workflow code, per Temporal's determinism constraint) and delivers the
// finished-workflow callback.
func ChatDispatchWorkflow(ctx workflow.Context, state *wfpkg.ExecutionState) (*wfpkg.ExecutionState, error) {
	ctx = workflow.WithActivityOptions(ctx, activityOptions(5*time.Minute))
	var a *Activities
	var out *wfpkg.ExecutionState
	err := workflow.ExecuteActivity(ctx, a.RunChatWorkflow, state).Get(ctx, &out)
	return out, err
}
