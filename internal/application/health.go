package application

import (
	"context"

	"github.com/jobrunner/tilesync/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	sync *SyncService
}

// NewHealthService creates a new health service.
func NewHealthService(sync *SyncService) *HealthService {
	return &HealthService{sync: sync}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady reports false only when the latest run attempt failed outright,
// e.g. because the catalog could not be loaded.
func (s *HealthService) IsReady(_ context.Context) bool {
	return s.sync.Status().LastError == ""
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	st := s.sync.Status()

	components := map[string]string{
		"scheduler": "ok",
		"last_run":  "ok",
	}
	if s.sync.Interval() <= 0 {
		components["scheduler"] = "disabled"
	}
	if st.LastError != "" {
		components["last_run"] = "error"
	}

	return input.HealthDetails{
		Healthy:    s.IsHealthy(ctx),
		Ready:      s.IsReady(ctx),
		Running:    st.Running,
		LastRunID:  st.LastRunID,
		LastRunAt:  st.LastFinishedAt,
		LastError:  st.LastError,
		Components: components,
	}
}
