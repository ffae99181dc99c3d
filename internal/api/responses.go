package api

import (
	"encoding/json"
	"net/http"

	"closingdoors/internal/logging"
)

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *API) errorResponse(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(a.logger, "request failed", err)
	a.errorResponse(w, http.StatusInternalServerError, "internal server error")
}
