package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/orchestrator"
)

// createJobHandler implements POST /jobs.
func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := s.orch.CreateJob(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// getJobHandler implements GET /jobs/{id}.
func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := s.orch.Get(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// retryJobHandler implements POST /jobs/{id}/retry.
func (s *Server) retryJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	result, err := s.orch.Retry(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeDomainError maps the §7 error taxonomy onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrAlreadyComplete), errors.Is(err, models.ErrInFlight):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("unhandled orchestrator error")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
