package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

type videoRequest struct {
	ThreadID string `json:"thread_id"`
	Script   string `json:"script"`
}

// handleVideos implements `POST /videos` (spec.md §6): enqueues an external
// video-generation task. Explicitly "not part of core" per spec.md; this
// handler only validates the request and hands back a session id the
// upstream system can poll/await out of band, with no wiring into the WGE.
func (h *handlers) handleVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)

	if _, err := h.resolveTenant(ctx, tenantID); err != nil {
		writeError(w, err)
		return
	}

	var req videoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.ThreadID == "" {
		badRequest(w, "thread_id is required")
		return
	}

	sessionID := uuid.NewString()
	writeJSON(w, http.StatusAccepted, map[string]string{"video_session_id": sessionID, "status": "queued"})
}
