// Package application contains the application services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/tilesync/internal/domain"
)

// ErrRateLimited is returned when the sync API rate limit is exceeded.
var ErrRateLimited = errors.New("rate limit exceeded")

// triggerCooldown is the minimum spacing of API-triggered runs.
const triggerCooldown = 30 * time.Second

// SyncRunner executes one sync run.
type SyncRunner interface {
	Run(ctx context.Context, opts RunOptions) (*domain.Report, error)
}

// SyncStatus describes the scheduler state.
type SyncStatus struct {
	Running         bool      `json:"running"`
	LastRunID       string    `json:"last_run_id,omitempty"`
	LastFinishedAt  time.Time `json:"last_finished_at,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	NextScheduledAt time.Time `json:"next_scheduled_at,omitempty"`
}

// SyncService schedules sync runs and guarantees at most one at a time.
type SyncService struct {
	runner   SyncRunner
	interval time.Duration
	logger   *slog.Logger

	// Lifecycle management
	baseCtx context.Context
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Rate limiting for API triggers
	lastAPISync time.Time
	apiMutex    sync.Mutex

	// Held for the duration of a run
	runMutex sync.Mutex

	stateMu  sync.RWMutex
	running  bool
	last     *domain.Report
	lastErr  error
	nextSync time.Time
}

// NewSyncService creates a new sync service. A zero interval disables
// periodic runs.
func NewSyncService(runner SyncRunner, interval time.Duration, logger *slog.Logger) *SyncService {
	return &SyncService{
		runner:   runner,
		interval: interval,
		logger:   logger,
		baseCtx:  context.Background(),
		stopCh:   make(chan struct{}),
		// Initialize to past time to allow immediate first API call
		lastAPISync: time.Now().Add(-triggerCooldown - time.Second),
	}
}

// Start begins the periodic scheduler. Runs triggered later through
// TriggerSync inherit ctx.
func (s *SyncService) Start(ctx context.Context) {
	s.baseCtx = ctx
	if s.interval <= 0 {
		s.logger.Info("periodic sync disabled")
		return
	}
	s.logger.Info("starting sync service", "interval", s.interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the scheduler loop.
func (s *SyncService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.setNextSync(time.Now().Add(s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync service stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("sync service stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled sync triggered")
			if _, err := s.RunOnce(ctx); errors.Is(err, domain.ErrRunInProgress) {
				s.logger.Info("scheduled sync skipped, previous run still active")
			}
			s.setNextSync(time.Now().Add(s.interval))
		}
	}
}

// Stop stops the scheduler and waits for background runs to finish.
func (s *SyncService) Stop() {
	s.logger.Info("stopping sync service")
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce performs a sync in the calling goroutine. It returns
// domain.ErrRunInProgress when another run holds the lock.
func (s *SyncService) RunOnce(ctx context.Context) (*domain.Report, error) {
	if !s.runMutex.TryLock() {
		return nil, domain.ErrRunInProgress
	}
	return s.runLocked(ctx)
}

// TriggerSync starts a run in the background, rate limited to one start
// per 30 seconds.
func (s *SyncService) TriggerSync() error {
	s.apiMutex.Lock()
	defer s.apiMutex.Unlock()

	if time.Since(s.lastAPISync) < triggerCooldown {
		return ErrRateLimited
	}
	if !s.runMutex.TryLock() {
		return domain.ErrRunInProgress
	}
	s.lastAPISync = time.Now()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.runLocked(s.baseCtx)
	}()
	return nil
}

// runLocked must be called with runMutex held and releases it.
func (s *SyncService) runLocked(ctx context.Context) (*domain.Report, error) {
	defer s.runMutex.Unlock()

	s.setRunning(true)
	report, err := s.runner.Run(ctx, RunOptions{})

	s.stateMu.Lock()
	s.running = false
	s.lastErr = err
	if report != nil {
		s.last = report
	}
	s.stateMu.Unlock()

	if err != nil {
		s.logger.Error("sync failed", "error", err)
	}
	return report, err
}

// LastReport returns the report of the latest successful run, or nil.
func (s *SyncService) LastReport() *domain.Report {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.last
}

// Status returns the scheduler state.
func (s *SyncService) Status() SyncStatus {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	st := SyncStatus{
		Running:         s.running,
		NextScheduledAt: s.nextSync,
	}
	if s.last != nil {
		st.LastRunID = s.last.RunID
		st.LastFinishedAt = s.last.FinishedAt
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *SyncService) setRunning(v bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.running = v
}

func (s *SyncService) setNextSync(t time.Time) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.nextSync = t
}

// Interval returns the sync interval.
func (s *SyncService) Interval() time.Duration {
	return s.interval
}
