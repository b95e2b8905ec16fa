package api

import (
	"encoding/json"
	"net/http"

	"github.com/digitalemployee/orchestrator/internal/apperrors"
)

// errorResponse is the stable-taxonomy error body every handler returns on
// failure (spec.md §7 "a stable error taxonomy code").
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps a domain error to the HTTP status spec.md §6/§7 assigns it.
// Errors that are not *apperrors.Error (a bug elsewhere, an unwrapped driver
// error) fall back to 500.
func statusFor(err error) int {
	kind, ok := apperrors.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperrors.KindValidationError:
		return http.StatusBadRequest
	case apperrors.KindTenantNotFound, apperrors.KindAssistantNotFound,
		apperrors.KindThreadNotFound, apperrors.KindMemoryNotFound:
		return http.StatusNotFound
	case apperrors.KindTenantDisabled, apperrors.KindTenantMismatch,
		apperrors.KindAssistantInactive, apperrors.KindThreadAccessDenied:
		return http.StatusForbidden
	case apperrors.KindThreadBusy:
		return http.StatusConflict
	case apperrors.KindLLMError, apperrors.KindUpstreamUnavailable, apperrors.KindUpstreamTimeout:
		return http.StatusBadGateway
	case apperrors.KindMemoryInsertFailure, apperrors.KindMemoryWriteError,
		apperrors.KindToolError, apperrors.KindWorkflowError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if kind, ok := apperrors.KindOf(err); ok {
		resp.Kind = string(kind)
	}
	writeJSON(w, status, resp)
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, apperrors.New(apperrors.KindValidationError, message))
}
