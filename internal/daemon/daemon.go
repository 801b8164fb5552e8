package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"reelcast/internal/config"
	"reelcast/internal/interaction"
	"reelcast/internal/logging"
	"reelcast/internal/notifications"
	"reelcast/internal/preflight"
	"reelcast/internal/scheduler"
	"reelcast/internal/store"
	"reelcast/internal/workflow"
)

// Components are the services the daemon drives. Scheduler, Monitor, and
// Gatherer are optional.
type Components struct {
	Workflow  *workflow.Manager
	Scheduler *scheduler.Scheduler
	Monitor   *interaction.Monitor
	Gatherer  prometheus.Gatherer
	Notifier  notifications.Service
}

// Daemon coordinates the background loops and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *store.Store
	workflow  *workflow.Manager
	scheduler *scheduler.Scheduler
	monitor   *interaction.Monitor
	gatherer  prometheus.Gatherer
	notifier  notifications.Service
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	loops     sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                   `json:"running"`
	PID          int                    `json:"pid"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	Workflow     workflow.StatusSummary `json:"workflow"`
	Scheduler    *scheduler.Status      `json:"scheduler,omitempty"`
	Interaction  *interaction.Status    `json:"interaction,omitempty"`
	Database     store.DatabaseHealth   `json:"database"`
	Preflight    []preflight.Result     `json:"preflight"`
	LockFilePath string                 `json:"lock_file"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, c Components) (*Daemon, error) {
	if cfg == nil || st == nil || logger == nil || c.Workflow == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	notifier := c.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     st,
		workflow:  c.Workflow,
		scheduler: c.Scheduler,
		monitor:   c.Monitor,
		gatherer:  c.Gatherer,
		notifier:  notifier,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, fails logs stranded by a previous crash,
// and launches the pipeline, dispatch, and interaction loops plus the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelcast daemon or pipeline run holds the lock")
	}

	if n, err := d.store.FailInterrupted(ctx, "interrupted by daemon restart"); err != nil {
		logging.WarnWithContext(d.logger, "could not fail interrupted logs", "interrupted_logs_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run reelcast logs list --status processing"),
			logging.String(logging.FieldImpact, "stale processing logs keep their items out of new runs"),
		)
	} else if n > 0 {
		d.logger.Info("failed logs interrupted by restart",
			logging.String(logging.FieldEventType, "interrupted_logs_failed"),
			logging.Int64("count", n),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if d.scheduler != nil {
		d.goLoop(func() { d.scheduler.Run(runCtx) })
	}
	if d.monitor != nil {
		d.goLoop(func() { d.monitor.Run(runCtx) })
	}
	if err := d.api.start(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "api server unavailable", "api_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api.bind for a port conflict"),
			logging.String(logging.FieldImpact, "reelcast status falls back to reading the database"),
		)
	}

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("reelcast daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

func (d *Daemon) goLoop(fn func()) {
	d.loops.Add(1)
	go func() {
		defer d.loops.Done()
		fn()
	}()
}

// Stop cancels the loops, waits for the in-flight stage, dispatch, and poll
// to settle, then stops the API and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.loops.Wait()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelcast daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListUnits returns scheduled units filtered by optional statuses.
func (d *Daemon) ListUnits(ctx context.Context, statuses []store.UnitStatus, limit int) ([]*store.ScheduledUnit, error) {
	return d.store.ListUnits(ctx, store.UnitFilter{Statuses: statuses, Limit: limit})
}

// RequeueUnit schedules a failed unit again.
func (d *Daemon) RequeueUnit(ctx context.Context, unitID int64) (*store.ScheduledUnit, error) {
	if d.scheduler == nil {
		return nil, errors.New("scheduler unavailable")
	}
	return d.scheduler.Requeue(ctx, unitID)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Status(ctx),
		Database:     d.store.CheckHealth(ctx),
		Preflight:    preflight.RunAll(ctx, d.cfg),
		LockFilePath: d.lockPath,
	}
	if status.Running {
		started := d.startedAt
		status.StartedAt = &started
	}
	if d.scheduler != nil {
		s := d.scheduler.Status()
		status.Scheduler = &s
	}
	if d.monitor != nil {
		m := d.monitor.Status()
		status.Interaction = &m
	}
	return status
}
