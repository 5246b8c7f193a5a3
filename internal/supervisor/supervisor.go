// Package supervisor implements the two periodic background loops of
// spec.md §4.6: the stale/auto-fail loop and the retention purge loop.
// Both are grounded on the teacher's ticker-driven Start/Stop shape
// (pkg/scheduler.Scheduler and pkg/worker.HealthMonitor): a stopCh
// closed on Stop, a ticker selected against in a goroutine, and a
// logger tagged per component.
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sparkqdev/sparkq/internal/core"
	"github.com/sparkqdev/sparkq/internal/log"
	"github.com/sparkqdev/sparkq/internal/metrics"
	"github.com/sparkqdev/sparkq/internal/store"
	"github.com/sparkqdev/sparkq/internal/types"
)

// Supervisor owns the stale/auto-fail loop and the purge loop, both
// reading through Core's Clock and writing through Core.
type Supervisor struct {
	core   *core.Core
	logger zerolog.Logger

	staleInterval time.Duration
	purgeInterval time.Duration
	retention     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds a Supervisor. staleInterval drives the stale/auto-fail
// loop's tick (spec.md: "on the order of a minute" by default);
// purgeInterval drives the purge loop's tick ("on the order of
// hours"); retention is the purge loop's age threshold.
func New(c *core.Core, staleInterval, purgeInterval, retention time.Duration) *Supervisor {
	return &Supervisor{
		core:          c,
		logger:        log.WithComponent("supervisor"),
		staleInterval: staleInterval,
		purgeInterval: purgeInterval,
		retention:     retention,
	}
}

// Start launches both loops in background goroutines. It is a no-op
// if already running.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.wg.Add(2)
	go s.runStaleLoop()
	go s.runPurgeLoop()

	s.logger.Info().
		Dur("stale_interval", s.staleInterval).
		Dur("purge_interval", s.purgeInterval).
		Dur("retention", s.retention).
		Msg("supervisor started")
}

// Stop signals both loops to exit and blocks until they do.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("supervisor stopped")
}

func (s *Supervisor) runStaleLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.staleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.staleTick()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Supervisor) runPurgeLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.purgeTick()
		case <-s.stopCh:
			return
		}
	}
}

// staleTick implements spec.md §4.6's stale loop: every running task
// past 2x timeout is auto-failed; every running task past 1x timeout
// and not yet warned is marked stale-warned. The two conditions are
// mutually exclusive (IsStale stops at 2x timeout), so at most one edge
// fires per task per tick, and the warn edge fires before auto-fail
// whenever a tick lands inside the stale window.
func (s *Supervisor) staleTick() {
	start := time.Now()
	defer func() {
		metrics.SupervisorLoopDuration.WithLabelValues("stale").Observe(time.Since(start).Seconds())
	}()

	statusRunning := types.TaskStatusRunning
	running, _, err := s.core.ListTasks(store.TaskFilter{Status: statusRunning, HasStatus: true})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list running tasks")
		return
	}

	now := s.core.Now()
	for _, task := range running {
		if task.IsOverdue(now) {
			reason := fmt.Sprintf("auto-failed: exceeded 2x timeout (%ds)", task.Timeout)
			if _, err := s.core.AutoFail(task.ID, reason); err != nil {
				log.WithTask(s.logger, task.ID, task.FriendlyID).Warn().Err(err).Msg("auto-fail lost the race or task already moved on")
				continue
			}
			metrics.TasksFailedTotal.WithLabelValues("auto_fail").Inc()
			log.WithTask(s.logger, task.ID, task.FriendlyID).Warn().Msg("task auto-failed")
			continue
		}
		if task.IsStale(now) && task.StaleWarnedAt == nil {
			if err := s.core.MarkStaleWarned(task.ID); err != nil {
				log.WithTask(s.logger, task.ID, task.FriendlyID).Warn().Err(err).Msg("failed to mark task stale-warned")
				continue
			}
			metrics.StaleWarnedTotal.Inc()
			log.WithTask(s.logger, task.ID, task.FriendlyID).Info().Msg("task marked stale")
		}
	}

	s.refreshStatusGauge()
}

// refreshStatusGauge recomputes the sparkq_tasks_by_status gauge for
// every queue. It piggybacks on the stale loop's cadence rather than
// running as a third ticker, since task counts only need to be as
// fresh as the stale/auto-fail decisions that consume them.
func (s *Supervisor) refreshStatusGauge() {
	queues, err := s.core.ListQueues()
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to list queues for status gauge refresh")
		return
	}
	statuses := []types.TaskStatus{types.TaskStatusQueued, types.TaskStatusRunning, types.TaskStatusSucceeded, types.TaskStatusFailed}
	for _, queue := range queues {
		counts, err := s.core.CountByStatus(queue.ID)
		if err != nil {
			log.WithQueueID(s.logger, queue.ID).Warn().Err(err).Msg("failed to count tasks by status")
			continue
		}
		for _, status := range statuses {
			metrics.TasksByStatus.WithLabelValues(queue.ID, string(status)).Set(float64(counts[status]))
		}
	}
}

// purgeTick implements spec.md §4.6's purge loop: terminal tasks
// finished before the retention cutoff are deleted outright. Queued
// and running tasks are never purged.
func (s *Supervisor) purgeTick() {
	start := time.Now()
	defer func() {
		metrics.SupervisorLoopDuration.WithLabelValues("purge").Observe(time.Since(start).Seconds())
	}()

	n, err := s.core.PurgeTerminalOlderThan(s.retention, types.TaskStatusSucceeded, types.TaskStatusFailed)
	if err != nil {
		s.logger.Error().Err(err).Msg("purge pass failed")
		return
	}
	if n > 0 {
		metrics.PurgedTotal.Add(float64(n))
		s.logger.Info().Int("purged", n).Msg("purged terminal tasks past retention")
	}
}
