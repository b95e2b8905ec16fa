package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/domain"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

type createThreadRequest struct {
	ThreadID    string            `json:"thread_id,omitempty"`
	AssistantID string            `json:"assistant_id"`
	Customer    map[string]string `json:"customer,omitempty"`
}

type runRequest struct {
	Messages []messageDTO `json:"messages"`
}

// resolveTenant loads and validates the tenant bound to this request,
// rejecting a disabled tenant before anything enters the WGE (spec.md §7
// "Entity not found / access denied: 404 / 403; never enter WGE").
func (h *handlers) resolveTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	tenant, err := h.d.Cache.Tenant(ctx, h.d.Store, tenantID)
	if err != nil {
		return domain.Tenant{}, err
	}
	if tenant.Status != domain.StatusActive {
		return domain.Tenant{}, apperrors.New(apperrors.KindTenantDisabled, "tenant is disabled")
	}
	return tenant, nil
}

// resolveAssistant loads and validates the assistant, enforcing the
// tenant-match invariant (spec.md §3).
func (h *handlers) resolveAssistant(ctx context.Context, tenantID, assistantID string) (domain.Assistant, error) {
	assistant, err := h.d.Cache.Assistant(ctx, h.d.Store, tenantID, assistantID)
	if err != nil {
		return domain.Assistant{}, err
	}
	if assistant.TenantID != tenantID {
		return domain.Assistant{}, apperrors.New(apperrors.KindTenantMismatch, "assistant does not belong to tenant")
	}
	if assistant.Status != domain.StatusActive {
		return domain.Assistant{}, apperrors.New(apperrors.KindAssistantInactive, "assistant is inactive")
	}
	return assistant, nil
}

// handleCreateThread implements `POST /threads` (spec.md §6): creates an
// IDLE thread, optionally bound to an assistant, and schedules a one-off
// greeting outreach.
func (h *handlers) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)

	if _, err := h.resolveTenant(ctx, tenantID); err != nil {
		writeError(w, err)
		return
	}

	var req createThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.AssistantID != "" {
		if _, err := h.resolveAssistant(ctx, tenantID, req.AssistantID); err != nil {
			writeError(w, err)
			return
		}
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	thread := domain.Thread{
		ID:          threadID,
		TenantID:    tenantID,
		AssistantID: req.AssistantID,
		Status:      domain.ThreadIdle,
		Customer:    domain.CustomerAttributes(req.Customer),
	}
	if err := h.d.Store.CreateThread(ctx, thread); err != nil {
		writeError(w, err)
		return
	}
	if err := h.d.Cache.PutThread(ctx, thread); err != nil {
		h.d.logger().Warn(ctx, "create thread: cache write-through failed", "thread_id", threadID, "error", err.Error())
	}

	if h.d.Greeter != nil && thread.HasAssistant() {
		go func(th domain.Thread) {
			greetCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.d.Greeter.Greet(greetCtx, th); err != nil {
				h.d.logger().Warn(greetCtx, "create thread: greeting delivery failed", "thread_id", th.ID, "error", err.Error())
			}
		}(thread)
	}

	writeJSON(w, http.StatusCreated, map[string]string{"thread_id": thread.ID, "status": string(thread.Status)})
}

// loadAuthorizedThread fetches a thread and verifies it belongs to tenantID,
// the shared prelude for every per-thread route.
func (h *handlers) loadAuthorizedThread(ctx context.Context, tenantID, threadID string) (domain.Thread, error) {
	return h.d.Cache.Thread(ctx, h.d.Store, tenantID, threadID)
}

func (h *handlers) decodeRunRequest(w http.ResponseWriter, r *http.Request) (runRequest, bool) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return runRequest{}, false
	}
	return req, true
}

// finishRun transitions threadID out of BUSY and refreshes its cache entry,
// used by both the synchronous and asynchronous run paths once the WGE run
// succeeds or fails.
func (h *handlers) finishRun(ctx context.Context, threadID string, runErr error) {
	var err error
	if runErr != nil {
		err = h.d.Store.FailWorkflow(ctx, threadID)
	} else {
		err = h.d.Store.CompleteWorkflow(ctx, threadID)
	}
	if err != nil {
		h.d.logger().Warn(ctx, "finish run: thread status transition failed", "thread_id", threadID, "error", err.Error())
	}
	if err := h.d.Cache.InvalidateThread(ctx, threadID); err != nil {
		h.d.logger().Warn(ctx, "finish run: cache invalidate failed", "thread_id", threadID, "error", err.Error())
	}
}

// handleRunWait implements `POST /threads/{thread_id}/runs/wait` (spec.md
// §6): runs the WGE synchronously and returns the final state.
func (h *handlers) handleRunWait(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	threadID := chi.URLParam(r, "thread_id")

	thread, err := h.prepareRun(w, r, tenantID, threadID)
	if err != nil {
		return
	}
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		h.finishRun(ctx, threadID, apperrors.New(apperrors.KindValidationError, "invalid body"))
		return
	}

	runID := uuid.NewString()
	state := workflow.NewExecutionState(runID, threadID, thread.AssistantID, tenantID, messagesToDomain(req.Messages))
	runErr := h.d.Dispatcher.Dispatch(ctx, state)
	h.finishRun(ctx, threadID, runErr)

	resp := threadRunResponse{
		RunID:           runID,
		ThreadID:        threadID,
		Status:          string(RunStatusCompleted),
		Output:          state.Output,
		BusinessOutputs: businessOutputsToMap(state.BusinessOutputs),
		InputTokens:     state.InputTokens,
		OutputTokens:    state.OutputTokens,
	}
	if runErr != nil {
		resp.Status = string(RunStatusFailed)
		resp.Error = runErr.Error()
		writeJSON(w, statusFor(runErr), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRunAsync implements `POST /threads/{thread_id}/runs/async`: launches
// the WGE in a background goroutine and returns immediately; the outcome is
// delivered via callback (spec.md §4.5c) and tracked for polling via
// RunStore.
func (h *handlers) handleRunAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	threadID := chi.URLParam(r, "thread_id")

	thread, err := h.prepareRun(w, r, tenantID, threadID)
	if err != nil {
		return
	}
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		h.finishRun(ctx, threadID, apperrors.New(apperrors.KindValidationError, "invalid body"))
		return
	}

	runID := uuid.NewString()
	h.d.Runs.Start(runID, threadID)

	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		state := workflow.NewExecutionState(runID, threadID, thread.AssistantID, tenantID, messagesToDomain(req.Messages))
		runErr := h.d.Dispatcher.DispatchAndNotify(bgCtx, state)
		h.finishRun(bgCtx, threadID, runErr)

		rec := RunRecord{
			ThreadID:        threadID,
			Status:          RunStatusCompleted,
			Output:          state.Output,
			BusinessOutputs: businessOutputsToMap(state.BusinessOutputs),
			InputTokens:     state.InputTokens,
			OutputTokens:    state.OutputTokens,
		}
		if runErr != nil {
			rec.Status = RunStatusFailed
			rec.Error = runErr.Error()
		}
		h.d.Runs.Finish(runID, rec)
	}()

	writeJSON(w, http.StatusAccepted, threadRunResponse{RunID: runID, ThreadID: threadID, Status: string(RunStatusRunning)})
}

// prepareRun runs the shared permission prelude for both run endpoints:
// resolve tenant/assistant, then claim the BUSY lock (spec.md §5, §7).
func (h *handlers) prepareRun(w http.ResponseWriter, r *http.Request, tenantID, threadID string) (domain.Thread, error) {
	ctx := r.Context()
	if _, err := h.resolveTenant(ctx, tenantID); err != nil {
		writeError(w, err)
		return domain.Thread{}, err
	}
	thread, err := h.loadAuthorizedThread(ctx, tenantID, threadID)
	if err != nil {
		writeError(w, err)
		return domain.Thread{}, err
	}
	if !thread.HasAssistant() {
		err := apperrors.New(apperrors.KindValidationError, "thread has no bound assistant")
		writeError(w, err)
		return domain.Thread{}, err
	}
	if _, err := h.resolveAssistant(ctx, tenantID, thread.AssistantID); err != nil {
		writeError(w, err)
		return domain.Thread{}, err
	}
	if err := beginWorkflow(ctx, h.d.Store, threadID, h.d.Config.ThreadBusyWait); err != nil {
		writeError(w, err)
		return domain.Thread{}, err
	}
	return thread, nil
}

// handleRunStatus implements
// `POST /threads/{thread_id}/runs/{run_id}/status`.
func (h *handlers) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	threadID := chi.URLParam(r, "thread_id")
	runID := chi.URLParam(r, "run_id")

	if _, err := h.loadAuthorizedThread(ctx, tenantID, threadID); err != nil {
		writeError(w, err)
		return
	}
	rec, ok := h.d.Runs.Get(runID)
	if !ok || rec.ThreadID != threadID {
		writeError(w, apperrors.Newf(apperrors.KindThreadNotFound, "run %q not found for thread %q", runID, threadID))
		return
	}
	writeJSON(w, http.StatusOK, threadRunResponse{
		RunID:           rec.RunID,
		ThreadID:        rec.ThreadID,
		Status:          string(rec.Status),
		Output:          rec.Output,
		BusinessOutputs: rec.BusinessOutputs,
		InputTokens:     rec.InputTokens,
		OutputTokens:    rec.OutputTokens,
		Error:           rec.Error,
	})
}

// handleMemoryAppend implements `POST /threads/{thread_id}/memory/append`:
// appends raw messages to the short-term buffer; if the thread is BUSY, wait
// up to ThreadBusyWait for it to clear rather than claiming the lock itself
// (spec.md §6).
func (h *handlers) handleMemoryAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)
	threadID := chi.URLParam(r, "thread_id")

	if _, err := h.resolveTenant(ctx, tenantID); err != nil {
		writeError(w, err)
		return
	}
	if err := h.waitWhileBusy(ctx, tenantID, threadID); err != nil {
		writeError(w, err)
		return
	}
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		return
	}

	n, err := h.d.Memory.Append(ctx, tenantID, threadID, messagesToDomain(req.Messages))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"buffer_length": n})
}

// waitWhileBusy polls the thread's status up to ThreadBusyWait, returning
// ThreadBusy if it never clears.
func (h *handlers) waitWhileBusy(ctx context.Context, tenantID, threadID string) error {
	deadline := time.Now().Add(h.d.Config.ThreadBusyWait)
	for {
		thread, err := h.d.Store.GetThread(ctx, tenantID, threadID)
		if err != nil {
			return err
		}
		if thread.Status != domain.ThreadBusy {
			return nil
		}
		if time.Now().After(deadline) {
			return apperrors.New(apperrors.KindThreadBusy, "thread is busy")
		}
		select {
		case <-ctx.Done():
			return apperrors.New(apperrors.KindThreadBusy, "thread is busy")
		case <-time.After(100 * time.Millisecond):
		}
	}
}
