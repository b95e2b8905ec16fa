package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/digitalemployee/orchestrator/internal/memory"
)

type memoryInsertItem struct {
	ThreadID   string   `json:"thread_id"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags,omitempty"`
	Importance float64  `json:"importance,omitempty"`
	ExpiresIn  string   `json:"expires_in,omitempty"` // e.g. "720h"; empty means no expiry
}

type memoryInsertRequest struct {
	Items []memoryInsertItem `json:"items"`
}

type memoryInsertResult struct {
	Index    int    `json:"index"`
	Success  bool   `json:"success"`
	MemoryID string `json:"memory_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleMemoryInsert implements `POST /memory/insert` (spec.md §6):
// bulk-inserts episodic long-term entries, reporting a per-item outcome
// (`{index, success, memory_id?, error?}`) so one bad item never fails the
// whole batch.
func (h *handlers) handleMemoryInsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)

	if _, err := h.resolveTenant(ctx, tenantID); err != nil {
		writeError(w, err)
		return
	}

	var req memoryInsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	results := make([]memoryInsertResult, len(req.Items))
	for i, item := range req.Items {
		results[i] = h.insertOne(ctx, tenantID, i, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *handlers) insertOne(ctx context.Context, tenantID string, index int, item memoryInsertItem) memoryInsertResult {
	if item.ThreadID == "" || item.Content == "" {
		return memoryInsertResult{Index: index, Error: "thread_id and content are required"}
	}
	var expiresAt *time.Time
	if item.ExpiresIn != "" {
		d, err := time.ParseDuration(item.ExpiresIn)
		if err != nil {
			return memoryInsertResult{Index: index, Error: "invalid expires_in: " + err.Error()}
		}
		t := time.Now().Add(d)
		expiresAt = &t
	}
	id, err := h.d.Memory.StoreSummary(ctx, tenantID, item.ThreadID, item.Content, memory.MemoryTypeEpisodic, item.Tags, item.Importance, expiresAt)
	if err != nil {
		return memoryInsertResult{Index: index, Error: err.Error()}
	}
	return memoryInsertResult{Index: index, Success: true, MemoryID: id}
}

type memoryDeleteRequest struct {
	ThreadID string `json:"thread_id"`
	EntryID  string `json:"entry_id"`
}

// handleMemoryDelete implements `POST /memory/delete`: deletes one episodic
// entry, scoped to tenant.
func (h *handlers) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := tenantFromContext(ctx)

	if _, err := h.resolveTenant(ctx, tenantID); err != nil {
		writeError(w, err)
		return
	}

	var req memoryDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.ThreadID == "" || req.EntryID == "" {
		badRequest(w, "thread_id and entry_id are required")
		return
	}

	if err := h.d.Memory.DeleteEpisodic(ctx, tenantID, req.ThreadID, req.EntryID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"entry_id": req.EntryID, "status": "deleted"})
}
