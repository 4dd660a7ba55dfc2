package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Sara-Samara/HealthAidProj-sub001/internal/service"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeServiceError maps service sentinel errors to a status code and a stable error code.
// Anything unrecognised is logged and reported as internal_error with failCode.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, failCode string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusUnprocessableEntity, "invalid_amount")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input")
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition")
	case errors.Is(err, service.ErrCampaignClosed):
		writeError(w, http.StatusConflict, "campaign_closed")
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, "conflict")
	case errors.Is(err, service.ErrDonorExists):
		writeError(w, http.StatusConflict, "donor_exists")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		slog.ErrorContext(r.Context(), failCode, "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, failCode)
	}
}

// pageParams reads limit/offset query parameters. Invalid values fall back to defaults.
func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
