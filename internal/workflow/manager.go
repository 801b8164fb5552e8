package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/fetcher"
	"reelcast/internal/logging"
	"reelcast/internal/metrics"
	"reelcast/internal/notifications"
	"reelcast/internal/preflight"
	"reelcast/internal/services"
	"reelcast/internal/store"
	"reelcast/internal/style"
)

// Fetcher pulls and persists new content items.
type Fetcher interface {
	Fetch(ctx context.Context) (fetcher.Result, error)
}

// Scheduler turns a finished item into scheduled units.
type Scheduler interface {
	ScheduleForPublication(ctx context.Context, render, metadata *store.StageArtifact) ([]*store.ScheduledUnit, error)
}

// PreflightFunc runs readiness checks before a pipeline run.
type PreflightFunc func(context.Context, *config.Config) []preflight.Result

// Manager coordinates pipeline runs using registered stage handlers.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	fetcher   Fetcher
	scheduler Scheduler
	styles    *style.Table
	logger    *slog.Logger
	notifier  notifications.Service
	recorder  *metrics.Recorder
	preflight PreflightFunc
	policy    services.RetryPolicy
	interval  time.Duration

	stages []pipelineStage

	// one run at a time
	runMu sync.Mutex

	mu       sync.RWMutex
	running  bool
	looping  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastErr  error
	lastRun  *RunSummary
	lastItem *store.ContentItem
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier overrides the notification service.
func WithNotifier(n notifications.Service) ManagerOption {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithRecorder records stage and item activity.
func WithRecorder(r *metrics.Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithPreflight overrides the readiness checks. Nil disables them.
func WithPreflight(fn PreflightFunc) ManagerOption {
	return func(m *Manager) { m.preflight = fn }
}

// NewManager constructs a new pipeline manager.
func NewManager(cfg *config.Config, st *store.Store, f Fetcher, sched Scheduler, styles *style.Table, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		cfg:       cfg,
		store:     st,
		fetcher:   f,
		scheduler: sched,
		styles:    styles,
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:  notifications.NewService(cfg),
		preflight: preflight.RunAll,
		policy:    services.RetryPolicyFromConfig(cfg.Retry),
		interval:  time.Duration(cfg.Pipeline.IntervalMinutes) * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
