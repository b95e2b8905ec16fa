// Package temporal adapts the Task Orchestrator's plain business logic
// (internal/orchestrator) to Temporal workflows and activities (spec.md
// §4.5), grounded on the teacher's runtime/agent/engine/temporal adapter:
// activities wrap a single collaborator call, workflows sequence them with
// retry policies, and worker registration is centralized in one Options
// struct.
package temporal

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/orchestrator"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// Activities bundles every activity method registered with the Temporal
// worker. Each method is a thin, logging wrapper around an
// internal/orchestrator collaborator so the orchestrator package itself
// never imports the Temporal SDK.
type Activities struct {
	Awakener   *orchestrator.Awakener
	Preserver  *orchestrator.Preserver
	Dispatcher *orchestrator.ChatDispatcher
	Summarizer func(ctx context.Context, tenantID, threadID string, recent []domain.Message) (string, error)
}

// ScanAndAwakenBatch runs one thread-awakening batch (spec.md §4.5a).
func (a *Activities) ScanAndAwakenBatch(ctx context.Context) (orchestrator.AwakeningStats, error) {
	activity.RecordHeartbeat(ctx, "scanning inactive threads")
	return a.Awakener.RunBatch(ctx)
}

// GreetThread sends the one-off opening message for a newly created thread
// (spec.md §4.5a supplemented greeting path).
func (a *Activities) GreetThread(ctx context.Context, thread domain.Thread) error {
	return a.Awakener.Greet(ctx, thread)
}

// PreservationCheck is CheckPreservationNeeded's result. Activity results can
// carry only one value besides error, so the (bool, string) pair CheckNeeded
// returns is wrapped here rather than returned directly.
type PreservationCheck struct {
	Needed bool
	Reason string
}

// CheckPreservationNeeded reports whether a thread's short-term buffer still
// has content worth considering for preservation (spec.md §4.5b).
func (a *Activities) CheckPreservationNeeded(ctx context.Context, tenantID, threadID string) (PreservationCheck, error) {
	needed, reason, err := a.Preserver.CheckNeeded(ctx, tenantID, threadID)
	return PreservationCheck{Needed: needed, Reason: reason}, err
}

// EvaluateAndPreserve runs the quality gate and, if it passes, summarizes and
// writes the buffer to long-term memory (spec.md §4.5b). It is one activity
// rather than three because the three steps share the same loaded message
// slice and splitting them would mean re-fetching it from the backend twice.
func (a *Activities) EvaluateAndPreserve(ctx context.Context, tenantID, threadID string) (orchestrator.PreservationResult, error) {
	return a.Preserver.Preserve(ctx, tenantID, threadID, a.Summarizer)
}

// RunChatWorkflow executes the Workflow Graph Engine for one turn and
// returns the final execution state (spec.md §6 "dispatch(workflow) ->
// final_state"), used by the asynchronous chat dispatch workflow.
func (a *Activities) RunChatWorkflow(ctx context.Context, state *workflow.ExecutionState) (*workflow.ExecutionState, error) {
	err := a.Dispatcher.DispatchAndNotify(ctx, state)
	return state, err
}

// ActivityOptions are the default Temporal activity options applied by the
// workflows in this package (start-to-close timeouts per spec.md §4.5's
// worked timings, three attempts, short initial backoff).
var ActivityOptions = struct {
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Attempts int32
}{
	Short:    10 * time.Second,
	Medium:   30 * time.Second,
	Long:     60 * time.Second,
	Attempts: 3,
}
