// Package api implements the inbound HTTP surface (spec.md §6): a
// chi-routed, bearer-JWT-authenticated, tenant-scoped REST layer in front of
// the core (Memory Store, Tool & LLM Gateway, Agent Runtime, Workflow Graph
// Engine, Task Orchestrator). Grounded on the pack's hand-written-transport
// examples (kadirpekel-hector's chi middleware, haasonsaas-nexus's JWT
// auth), since the teacher's own HTTP transport is goa-codegen-produced and
// not something this repo runs the generator for.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
	"github.com/digitalemployee/orchestrator/internal/cache"
	"github.com/digitalemployee/orchestrator/internal/config"
	"github.com/digitalemployee/orchestrator/internal/memory"
	"github.com/digitalemployee/orchestrator/internal/orchestrator"
	"github.com/digitalemployee/orchestrator/internal/store/postgres"
	"github.com/digitalemployee/orchestrator/internal/telemetry"
	"github.com/digitalemployee/orchestrator/internal/workflow"
)

// Deps is every collaborator the REST layer needs. Handlers only ever read
// from Deps; process wiring (cmd/server) owns construction order.
type Deps struct {
	Store      *postgres.Store
	Cache      *cache.Cache
	Memory     *memory.Store
	Dispatcher *orchestrator.ChatDispatcher
	Greeter    *orchestrator.Awakener
	Graph      *workflow.Graph
	Auth       *JWTAuthenticator
	Runs       *RunStore

	Config config.Config

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
}

func (d Deps) logger() telemetry.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return telemetry.NewNoopLogger()
}

func (d Deps) metrics() telemetry.Metrics {
	if d.Metrics != nil {
		return d.Metrics
	}
	return telemetry.NewNoopMetrics()
}

// NewRouter builds the full HTTP handler tree for the service.
func NewRouter(d Deps) http.Handler {
	if d.Runs == nil {
		d.Runs = NewRunStore()
	}
	h := &handlers{d: d}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware(d.logger(), d.metrics()))

	r.Get("/healthz", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(d.Auth))
		r.Use(tenantScopeMiddleware)

		r.Post("/tenants/sync", h.handleTenantSync)

		r.Post("/threads", h.handleCreateThread)
		r.Post("/threads/{thread_id}/runs/wait", h.handleRunWait)
		r.Post("/threads/{thread_id}/runs/async", h.handleRunAsync)
		r.Post("/threads/{thread_id}/runs/{run_id}/status", h.handleRunStatus)
		r.Post("/threads/{thread_id}/memory/append", h.handleMemoryAppend)

		r.Post("/memory/insert", h.handleMemoryInsert)
		r.Post("/memory/delete", h.handleMemoryDelete)

		r.Post("/videos", h.handleVideos)
	})

	return r
}

type handlers struct {
	d Deps
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// beginWorkflow acquires the BUSY lock on threadID, retrying the
// compare-and-swap for up to wait before giving up with ThreadBusy (spec.md
// §5/§6: "if thread BUSY, bounded wait up to 5 s").
func beginWorkflow(ctx context.Context, store *postgres.Store, threadID string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := store.TryBeginWorkflow(ctx, threadID)
		if err != nil {
			return err
		}
		if ok {
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
