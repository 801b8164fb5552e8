package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"reelcast/internal/config"
	"reelcast/internal/daemon"
	"reelcast/internal/fetcher"
	"reelcast/internal/interaction"
	"reelcast/internal/logging"
	"reelcast/internal/metadata"
	"reelcast/internal/metrics"
	"reelcast/internal/narrative"
	"reelcast/internal/notifications"
	"reelcast/internal/publisher"
	"reelcast/internal/render"
	"reelcast/internal/scheduler"
	"reelcast/internal/services"
	"reelcast/internal/services/avatar"
	"reelcast/internal/services/textgen"
	"reelcast/internal/services/tts"
	"reelcast/internal/store"
	"reelcast/internal/style"
	"reelcast/internal/synthesis"
	"reelcast/internal/workflow"
)

// Options configures process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Runtime holds every wired component of the pipeline.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *store.Store
	Registry  *prometheus.Registry
	Recorder  *metrics.Recorder
	Notifier  notifications.Service
	Platforms *publisher.Registry
	Workflow  *workflow.Manager
	Scheduler *scheduler.Scheduler
	Monitor   *interaction.Monitor
}

// NewLogger builds the process logger, writing to stdout and reelcast.log.
func NewLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	outputs := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputs = append(outputs, filepath.Join(cfg.Paths.LogDir, "reelcast.log"))
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
	})
}

// Build opens the store and wires fetcher, stages, scheduler, publisher,
// interaction monitor, and metrics. Callers must Close the runtime.
func Build(cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(st, metrics.NewCollectors(registry), logger)
	notifier := notifications.NewService(cfg)

	limiters := services.NewLimiters(cfg.RateLimits)
	limiters.OnWait(recorder.RateLimitWait)

	styles, err := style.NewTable(cfg.Styles)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("style table: %w", err)
	}

	platforms := publisher.FromConfig(cfg, limiters)
	sched, err := scheduler.New(cfg, st, publisher.New(platforms, logger), logger,
		scheduler.WithRecorder(recorder),
		scheduler.WithNotifier(notifier),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	f := fetcher.New(cfg, st, logger, fetcher.WithLimiters(limiters), fetcher.WithRecorder(recorder))
	wf := workflow.NewManager(cfg, st, f, sched, styles, logger,
		workflow.WithNotifier(notifier),
		workflow.WithRecorder(recorder),
	)
	registerStages(wf, cfg, limiters, logger)

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Registry:  registry,
		Recorder:  recorder,
		Notifier:  notifier,
		Platforms: platforms,
		Workflow:  wf,
		Scheduler: sched,
		Monitor:   interaction.New(cfg, st, platforms, logger, interaction.WithRecorder(recorder)),
	}, nil
}

// Close releases the store.
func (r *Runtime) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, limiters *services.Limiters, logger *slog.Logger) {
	gen := textgen.NewClient(cfg.Providers.TextGen, textgen.WithLimiters(limiters))
	mgr.ConfigureStages(workflow.StageSet{
		Narrative: narrative.New(gen, cfg.Pipeline, logger),
		Synthesis: synthesis.New(tts.NewClient(cfg.Providers.TTS, tts.WithLimiters(limiters)), cfg.Pipeline, logger),
		Render:    render.New(avatar.NewClient(cfg.Providers.Avatar, avatar.WithLimiters(limiters)), logger),
		Metadata:  metadata.New(gen, logger),
	})
}

// ErrLocked is returned by RunOnce while a daemon or another run holds the
// single-instance lock.
var ErrLocked = errors.New("a reelcast daemon or pipeline run is already active")

// RunOnce performs a single pipeline run outside the daemon. It takes the
// daemon's lock for the whole run so a daemon starting meanwhile cannot fail
// the run's in-flight content log as interrupted.
func RunOnce(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger) (workflow.RunSummary, error) {
	if cfg == nil {
		return workflow.RunSummary{}, errors.New("config is required")
	}
	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.LockPath()), 0o755); err != nil {
		return workflow.RunSummary{}, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return workflow.RunSummary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return workflow.RunSummary{}, ErrLocked
	}
	defer func() { _ = lock.Unlock() }()

	rt, err := Build(cfg, logger)
	if err != nil {
		return workflow.RunSummary{}, err
	}
	defer rt.Close()
	return rt.Workflow.RunOnce(ctx)
}

// Run starts the reelcast daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := NewLogger(cfg, opts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	var platformNames []string
	for _, p := range cfg.EnabledPlatforms() {
		platformNames = append(platformNames, p.Name)
	}
	logger.Info("configuration loaded",
		logging.String(logging.FieldEventType, "config_loaded"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.Int("sources", len(cfg.Sources)),
		logging.Any("platforms", platformNames),
		logging.Int("interval_minutes", cfg.Pipeline.IntervalMinutes),
	)

	pidPath := filepath.Join(cfg.Paths.DataDir, "reelcastd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	rt, err := Build(cfg, logger)
	if err != nil {
		logger.Error("build runtime", logging.Error(err))
		return err
	}

	d, err := daemon.New(cfg, rt.Store, logger, daemon.Components{
		Workflow:  rt.Workflow,
		Scheduler: rt.Scheduler,
		Monitor:   rt.Monitor,
		Gatherer:  rt.Registry,
		Notifier:  rt.Notifier,
	})
	if err != nil {
		rt.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and database access"),
		)
		if nerr := rt.Notifier.Publish(context.WithoutCancel(signalCtx), notifications.EventError, notifications.Payload{
			"error":   err,
			"context": "daemon start",
		}); nerr != nil {
			logger.Debug("error notification failed", logging.Error(nerr))
		}
		return err
	}

	<-signalCtx.Done()
	logger.Info("reelcast daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
