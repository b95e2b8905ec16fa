package temporal

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// awakeningScheduleID is the fixed Temporal Schedule id for the recurring
// thread-awakening batch (spec.md §4.5a). Fixed rather than derived so
// EnsureAwakeningSchedule is idempotent across process restarts.
const awakeningScheduleID = "thread-awakening"

// Options configures the worker that hosts this package's workflows and
// activities. Client, TaskQueue and Activities are required; WorkerOptions is
// passed to worker.New unchanged.
type Options struct {
	Client     client.Client
	TaskQueue  string
	Activities *Activities

	WorkerOptions worker.Options
}

// Worker wraps a single Temporal worker registered with every workflow and
// activity this package defines. Unlike the teacher's generic engine
// adapter, this package only ever hosts one task queue, so there is no
// per-queue worker pool to manage.
type Worker struct {
	client    client.Client
	taskQueue string
	w         worker.Worker
}

// New registers this package's workflows and activities on a worker for
// opts.TaskQueue. Call Run or Start to begin polling.
func New(opts Options) (*Worker, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("orchestrator/temporal: Options.Client is required")
	}
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("orchestrator/temporal: Options.TaskQueue is required")
	}
	if opts.Activities == nil {
		return nil, fmt.Errorf("orchestrator/temporal: Options.Activities is required")
	}

	w := worker.New(opts.Client, opts.TaskQueue, opts.WorkerOptions)
	w.RegisterWorkflow(ThreadAwakeningWorkflow)
	w.RegisterWorkflow(GreetingWorkflow)
	w.RegisterWorkflow(ConversationPreservationWorkflow)
	w.RegisterWorkflow(ChatDispatchWorkflow)
	w.RegisterActivity(opts.Activities)

	return &Worker{client: opts.Client, taskQueue: opts.TaskQueue, w: w}, nil
}

// Run starts the worker and blocks until the process receives an interrupt
// signal, matching worker.Worker.Run's own contract.
func (wk *Worker) Run() error {
	return wk.w.Run(worker.InterruptCh())
}

// Stop stops polling without waiting for in-flight activities to drain.
func (wk *Worker) Stop() {
	wk.w.Stop()
}

// EnsureAwakeningSchedule creates (or, if already present, updates in place)
// the recurring Temporal Schedule that drives ThreadAwakeningWorkflow
// (spec.md §4.5a: "the schedule definition itself is idempotent: creating it
// twice either succeeds or updates in place"). Safe to call on every process
// start.
func EnsureAwakeningSchedule(ctx context.Context, c client.Client, taskQueue string, interval time.Duration) error {
	handle := c.ScheduleClient().GetHandle(ctx, awakeningScheduleID)
	desc, err := handle.Describe(ctx)
	if err == nil && desc != nil {
		return handle.Update(ctx, client.ScheduleUpdateOptions{
			DoUpdate: func(input client.ScheduleUpdateInput) (*client.ScheduleUpdate, error) {
				schedule := input.Description.Schedule
				schedule.Spec = &client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}}
				return &client.ScheduleUpdate{Schedule: &schedule}, nil
			},
		})
	}

	_, err = c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:   awakeningScheduleID,
		Spec: client.ScheduleSpec{Intervals: []client.ScheduleIntervalSpec{{Every: interval}}},
		Action: &client.ScheduleWorkflowAction{
			ID:        "thread-awakening-batch",
			Workflow:  ThreadAwakeningWorkflow,
			TaskQueue: taskQueue,
		},
		Overlap: client.ScheduleOverlapPolicySkip,
	})
	if err != nil {
		return fmt.Errorf("orchestrator/temporal: ensure awakening schedule: %w", err)
	}
	return nil
}
