package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncTasks counts a finished transfer task by outcome.
	IncTasks(outcome string)

	// ObserveTransferDuration records the duration of one copy.
	ObserveTransferDuration(duration time.Duration)

	// IncListings counts an area listing.
	IncListings(success bool)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)

	// SetLastRun records the completion time of the latest run.
	SetLastRun(t time.Time)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncTasks implements MetricsCollector.
func (n *NoOpMetrics) IncTasks(_ string) {}

// ObserveTransferDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveTransferDuration(_ time.Duration) {}

// IncListings implements MetricsCollector.
func (n *NoOpMetrics) IncListings(_ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}

// SetLastRun implements MetricsCollector.
func (n *NoOpMetrics) SetLastRun(_ time.Time) {}
