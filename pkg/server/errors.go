package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/malbeclabs/budgetquery/pkg/pipeline"
	"github.com/malbeclabs/budgetquery/pkg/store"
)

// statusFor maps a pipeline or store error to an HTTP status.
func statusFor(err error) int {
	var (
		inputErr   *pipeline.InputError
		unsafeErr  *pipeline.UnsafeQueryError
		serviceErr *pipeline.ServiceError
		connErr    *store.ConnectionError
		queryErr   *store.QueryError
	)
	switch {
	case errors.As(err, &inputErr), errors.As(err, &unsafeErr):
		return http.StatusBadRequest
	case errors.As(err, &serviceErr):
		return http.StatusBadGateway
	case errors.As(err, &connErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &queryErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// fail reports err with the status it maps to. Unclassified errors are logged and not echoed.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("server: request failed", "path", r.URL.Path, "error", err)
		s.writeError(w, status, "internal server error")
		return
	}
	s.log.Warn("server: request rejected", "path", r.URL.Path, "status", status, "error", err)
	s.writeError(w, status, err.Error())
}
