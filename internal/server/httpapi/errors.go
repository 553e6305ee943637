package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/parcelsync/internal/common"
)

type errorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	RequestID string `json:"requestId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Message:   message,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
	})
}

// writeServiceError maps service sentinels to HTTP statuses. Internal
// details are logged, never returned.
func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeError(w, r, http.StatusUnprocessableEntity, "validation_error", err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
	case errors.Is(err, common.ErrRefreshTokenExpired),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", err.Error())
	default:
		a.logger.Error(r.Context(), "request failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, r, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
	}
}
