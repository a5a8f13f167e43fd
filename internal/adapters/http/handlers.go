package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jobrunner/tilesync/internal/application"
	"github.com/jobrunner/tilesync/internal/domain"
)

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status":      boolToStatus(details.Healthy),
		"ready":       details.Ready,
		"running":     details.Running,
		"last_run_id": details.LastRunID,
		"components":  details.Components,
	}
	if !details.LastRunAt.IsZero() {
		body["last_run_at"] = details.LastRunAt.UTC().Format(time.RFC3339)
	}
	if details.LastError != "" {
		body["last_error"] = details.LastError
	}

	s.writeJSON(w, status, body)
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	} else {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
}

// handleSync starts a sync run in the background.
func (s *Server) handleSync(w http.ResponseWriter, _ *http.Request) {
	err := s.sync.TriggerSync()
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, application.ErrRateLimited):
		w.Header().Set("Retry-After", "30")
		s.writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in 30 seconds.")
	case errors.Is(err, domain.ErrRunInProgress):
		s.writeError(w, http.StatusConflict, "A sync run is already in progress")
	default:
		s.logger.Error("sync trigger failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
	}
}

// handlePreflight answers OPTIONS requests that reach the router without CORS.
func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleLastReport returns the report of the latest completed run.
func (s *Server) handleLastReport(w http.ResponseWriter, _ *http.Request) {
	report := s.sync.LastReport()
	if report == nil {
		s.writeError(w, http.StatusNotFound, "No sync run has completed yet")
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleOpenAPI returns the OpenAPI specification.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	spec, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to get OpenAPI spec", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to load OpenAPI specification")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(spec)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
