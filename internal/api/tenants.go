package api

import (
	"encoding/json"
	"net/http"

	"github.com/digitalemployee/orchestrator/internal/domain"
)

type tenantSyncRequest struct {
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
}

// handleTenantSync implements `POST /tenants/sync` (spec.md §6): creates or
// updates a Tenant. Tenants are otherwise owned by an external management
// API; this is the one write path into the relational tenants table.
func (h *handlers) handleTenantSync(w http.ResponseWriter, r *http.Request) {
	var req tenantSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.TenantID == "" {
		badRequest(w, "tenant_id is required")
		return
	}
	if req.TenantID != tenantFromContext(r.Context()) {
		badRequest(w, "tenant_id does not match the request's tenant scope")
		return
	}
	status := domain.Status(req.Status)
	if status == "" {
		status = domain.StatusActive
	}
	if status != domain.StatusActive && status != domain.StatusInactive {
		badRequest(w, "status must be ACTIVE or INACTIVE")
		return
	}

	tenant := domain.Tenant{ID: req.TenantID, Status: status}
	if err := h.d.Store.UpsertTenant(r.Context(), tenant); err != nil {
		writeError(w, err)
		return
	}
	if err := h.d.Cache.PutTenant(r.Context(), tenant); err != nil {
		h.d.logger().Warn(r.Context(), "tenant sync: cache write-through failed", "tenant_id", tenant.ID, "error", err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]string{"tenant_id": tenant.ID, "status": string(tenant.Status)})
}
