package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/sparkqdev/sparkq/internal/lockfile"
	"github.com/sparkqdev/sparkq/internal/log"
)

// Mode selects the Runner's polling behavior (spec.md §4.8).
type Mode string

const (
	// ModeOnce claims at most one task, prints it, and exits.
	ModeOnce Mode = "once"
	// ModeDrain loops claiming until peek returns none, then exits.
	ModeDrain Mode = "drain"
	// ModeWatch loops forever, sleeping PollInterval between attempts.
	ModeWatch Mode = "watch"
)

// Config carries the Runner's startup parameters.
type Config struct {
	QueueID      string
	ServerURL    string
	Mode         Mode
	PollInterval time.Duration
	LockDir      string
	WorkerID     string
	Stdout       io.Writer
	Stderr       io.Writer
}

// Runner is one long-lived process for a single queue: it acquires a
// per-queue advisory lock, polls for the oldest queued task, claims it
// atomically, and streams the claim descriptor to Stdout. It never
// executes the task itself (spec.md §4.8).
type Runner struct {
	cfg    Config
	client *APIClient
	logger zerolog.Logger
}

// New builds a Runner. cfg.WorkerID, if empty, is derived from the
// local hostname and queue id in Run.
func New(cfg Config) *Runner {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	return &Runner{
		cfg:    cfg,
		client: NewAPIClient(cfg.ServerURL),
		logger: log.WithComponent("runner"),
	}
}

// WorkerID derives a stable identity from hostname + queue id, used
// for audit/logging (spec.md §4.8).
func WorkerID(queueID string) string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	return fmt.Sprintf("%s/%s", hostname, queueID)
}

// LockPath returns the advisory lockfile path for a queue, per
// spec.md §6's persisted state layout.
func LockPath(lockDir, queueID string) string {
	return filepath.Join(lockDir, fmt.Sprintf("sparkq-runner-%s.lock", queueID))
}

// Run acquires the single-instance lock, prints the instructions
// banner, and drives the polling loop until ctx is canceled (watch
// mode) or the mode's own termination condition is reached (once,
// drain). The lock is always released before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	lockPath := LockPath(r.cfg.LockDir, r.cfg.QueueID)
	lock, err := lockfile.Acquire(lockPath)
	if err != nil {
		return fmt.Errorf("another runner already holds queue %s: %w", r.cfg.QueueID, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to release runner lockfile")
		}
	}()

	if r.cfg.WorkerID == "" {
		r.cfg.WorkerID = WorkerID(r.cfg.QueueID)
	}

	queue, err := r.client.GetQueue(ctx, r.cfg.QueueID)
	if err != nil {
		return fmt.Errorf("failed to load queue %s: %w", r.cfg.QueueID, err)
	}
	if queue.Instructions != "" {
		fmt.Fprintln(r.cfg.Stderr, "=== Queue instructions ===")
		fmt.Fprintln(r.cfg.Stderr, queue.Instructions)
		fmt.Fprintln(r.cfg.Stderr, "==========================")
	}
	log.WithQueueID(r.logger, r.cfg.QueueID).Info().Str("worker_id", r.cfg.WorkerID).Str("mode", string(r.cfg.Mode)).Msg("runner starting")

	switch r.cfg.Mode {
	case ModeOnce:
		return r.runOnce(ctx)
	case ModeDrain:
		return r.runDrain(ctx)
	case ModeWatch:
		return r.runWatch(ctx)
	default:
		return fmt.Errorf("unknown runner mode %q", r.cfg.Mode)
	}
}

func (r *Runner) runOnce(ctx context.Context) error {
	claimed, err := r.tick(ctx)
	if err != nil {
		return err
	}
	if !claimed {
		fmt.Fprintln(r.cfg.Stderr, "no queued tasks; exiting")
	}
	return nil
}

func (r *Runner) runDrain(ctx context.Context) error {
	for {
		claimed, err := r.tick(ctx)
		if err != nil {
			return err
		}
		if !claimed {
			fmt.Fprintln(r.cfg.Stderr, "queue drained; exiting")
			return nil
		}
	}
}

func (r *Runner) runWatch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("runner received shutdown signal")
			return nil
		default:
		}

		claimed, err := r.tick(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("poll tick failed")
		}
		if claimed {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// tick performs one peek+claim attempt. It returns claimed=true only
// when a task was successfully claimed and emitted; a lost claim race
// or an empty queue both return claimed=false without error, matching
// spec.md §4.8's "on loss, skip and loop" contract.
func (r *Runner) tick(ctx context.Context) (bool, error) {
	task, err := r.client.PeekOldestQueued(ctx, r.cfg.QueueID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	descriptor, err := r.client.Claim(ctx, task.ID)
	if err != nil {
		if IsConflict(err) {
			log.WithTask(r.logger, task.ID, task.FriendlyID).Debug().Msg("lost claim race, continuing to poll")
			return false, nil
		}
		return false, err
	}

	if err := json.NewEncoder(r.cfg.Stdout).Encode(descriptor); err != nil {
		return false, fmt.Errorf("failed to emit claim descriptor: %w", err)
	}
	log.WithTask(r.logger, descriptor.ID, descriptor.FriendlyID).Info().Msg("claimed task")
	return true, nil
}
