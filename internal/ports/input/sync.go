// Package input defines the primary/driving ports of the application.
package input

import (
	"context"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
)

// SyncTrigger defines the primary port for starting and inspecting runs.
type SyncTrigger interface {
	// TriggerSync starts a run in the background. It fails with a
	// rate-limit error or domain.ErrRunInProgress.
	TriggerSync() error

	// LastReport returns the latest completed report, or nil.
	LastReport() *domain.Report
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy    bool              // Overall health status
	Ready      bool              // Ready to accept requests
	Running    bool              // A sync run is active
	LastRunID  string            // Latest completed run
	LastRunAt  time.Time         // Completion time of the latest run
	LastError  string            // Error of the latest run attempt
	Components map[string]string // Component statuses
}
