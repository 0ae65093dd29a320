package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"rwa-portfolio/internal/storage"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// respondJSON writes data as JSON with the given status. A nil data writes
// only the status.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, details any) {
	s.respondJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// respondStoreError maps storage errors to HTTP statuses. Anything
// unexpected is logged and reported as 500 without internals.
func (s *Server) respondStoreError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, what+" not found", nil)
	case errors.Is(err, storage.ErrInvalidInput):
		s.respondError(w, http.StatusBadRequest, "invalid "+what, err.Error())
	default:
		s.log.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", requestID(r)).
			Msg("request failed")
		s.respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
