package orchestrator

import (
	"context"
	"time"

	"github.com/digitalemployee/orchestrator/internal/telemetry"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// finishedEventName is the callback event id used to notify the upstream
// system that a workflow finished (spec.md §6 "dispatch(workflow) ->
// final_state ... used by the background path").
const finishedEventName = "workflow_finished"

// ChatDispatcher runs the Workflow Graph Engine over one turn's execution
// state and, for the asynchronous path, notifies the upstream system of the
// outcome via callback (spec.md §4.5c, §6). The synchronous REST path
// (internal/api) calls Dispatch and skips the callback, since the
// caller already receives final_state as the HTTP response; spec.md §6
// treats `dispatch` and the synchronous entrypoint as the same underlying
// operation with a different caller, resolved here as one Run plus an
// optional notify step.
type ChatDispatcher struct {
	Engine   *workflow.Engine
	Graph    *workflow.Graph
	Callback CallbackSender
	Endpoint string

	CallbackTimeout time.Duration
	CallbackRetries int

	Logger telemetry.Logger
	Now    func() time.Time
}

func (d *ChatDispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *ChatDispatcher) logger() telemetry.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return telemetry.NewNoopLogger()
}

// Dispatch runs the graph to completion and returns the final state. It is
// the single entrypoint shared by the synchronous API path (which ignores
// Notify) and the asynchronous background path (DispatchAndNotify).
func (d *ChatDispatcher) Dispatch(ctx context.Context, state *workflow.ExecutionState) error {
	return d.Engine.Run(ctx, d.Graph, state)
}

// DispatchAndNotify runs the graph and, regardless of outcome, delivers a
// finished-workflow callback carrying the final text, business outputs and
// token counts (spec.md §4.5c). A run error does not suppress the
// notification: partial state is still reported so the upstream system is
// never left waiting on a turn that already failed.
func (d *ChatDispatcher) DispatchAndNotify(ctx context.Context, state *workflow.ExecutionState) error {
	startedAt := d.now()
	runErr := d.Dispatch(ctx, state)
	finishedAt := d.now()

	status := CallbackStatusCompleted
	var errMsg string
	if runErr != nil {
		status = CallbackStatusFailed
		errMsg = runErr.Error()
	}

	data := CallbackData{
		Output:       state.Output,
		InputTokens:  state.InputTokens,
		OutputTokens: state.OutputTokens,
	}
	if state.BusinessOutputs != nil {
		data.BusinessOutputs = map[string]any{
			"status":  state.BusinessOutputs.Status,
			"time":    state.BusinessOutputs.Time,
			"service": state.BusinessOutputs.Service,
			"name":    state.BusinessOutputs.Name,
			"phone":   state.BusinessOutputs.Phone,
		}
	}

	payload := CallbackPayload{
		AssistantID:     state.AssistantID,
		ThreadID:        state.ThreadID,
		EventID:         finishedEventName,
		EventTimeMillis: finishedAt.UnixMilli(),
		EventContent: CallbackEventContent{
			RunID:          state.WorkflowID,
			Status:         status,
			Data:           data,
			Error:          errMsg,
			ProcessingTime: finishedAt.Sub(startedAt).Milliseconds(),
			FinishedAt:     finishedAt.UnixMilli(),
		},
	}
	if err := d.Callback.Send(ctx, d.Endpoint, payload, nil, d.CallbackTimeout, d.CallbackRetries); err != nil {
		d.logger().Warn(ctx, "dispatch: finished callback delivery failed", "thread_id", state.ThreadID, "error", err.Error())
	}
	return runErr
}
