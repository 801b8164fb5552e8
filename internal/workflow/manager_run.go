package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reelcast/internal/logging"
	"reelcast/internal/services"
)

// ErrRunInProgress is returned when RunOnce is called while a run is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Start begins interval processing: one run immediately, then one every
// pipeline.interval_minutes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.looping {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.looping = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.loop(runCtx)
	return nil
}

// Stop terminates interval processing and waits for the in-flight stage to
// finish or time out.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.looping {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.looping = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.interval
	if interval <= 0 {
		interval = time.Hour
	}
	m.logger.Info("pipeline loop started",
		logging.String(logging.FieldEventType, "pipeline_loop_started"),
		logging.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrRunInProgress) {
			logging.WarnWithContext(m.logger, "pipeline run failed", "pipeline_run_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run reelcast status for details"),
				logging.String(logging.FieldImpact, "no items processed until the next interval"),
			)
		}
		select {
		case <-ctx.Done():
			m.logger.Info("pipeline loop stopped", logging.String(logging.FieldEventType, "pipeline_loop_stopped"))
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one full pipeline run: fetch, select eligible items, and
// process each sequentially. Canceling ctx lets the in-flight stage finish
// or time out, then stops before the next item.
func (m *Manager) RunOnce(ctx context.Context) (RunSummary, error) {
	if !m.runMu.TryLock() {
		return RunSummary{}, ErrRunInProgress
	}
	defer m.runMu.Unlock()

	summary := RunSummary{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	ctx = services.WithRequestID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, m.logger)
	m.setRunning(true)
	defer m.setRunning(false)

	err := m.run(ctx, logger, &summary)
	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	if err != nil {
		summary.Error = err.Error()
		m.setLastError(err)
	}
	m.setLastRun(summary)

	logger.Info("pipeline run finished",
		logging.String(logging.FieldEventType, "pipeline_run_finished"),
		logging.Int("fetched", summary.Fetched),
		logging.Int("unique", summary.Unique),
		logging.Int("processed", summary.Processed),
		logging.Int("completed", summary.Completed),
		logging.Int("failed", summary.Failed),
		logging.Int("scheduled_units", summary.Scheduled),
		logging.Bool("interrupted", summary.Interrupted),
		logging.Duration("run_duration", summary.Duration),
	)
	if summary.Processed > 0 {
		m.notifyRunCompleted(ctx, summary)
	}
	return summary, err
}

func (m *Manager) run(ctx context.Context, logger *slog.Logger, summary *RunSummary) error {
	if len(m.stageList()) == 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "run", "no stages configured", nil)
	}
	if err := m.runPreflightChecks(ctx, logger); err != nil {
		return err
	}

	if m.fetcher != nil {
		result, err := m.fetcher.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				summary.Interrupted = true
				return ctx.Err()
			}
			// Items left eligible by earlier runs can still be processed.
			logging.WarnWithContext(logger, "fetch failed", "fetch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check [[sources]] and the activity log"),
				logging.String(logging.FieldImpact, "run continues with previously fetched items"),
			)
		}
		summary.Fetched = result.TotalFetched
		summary.Unique = result.UniqueCount
		summary.SourceFailures = len(result.Failures)
	}

	items, err := m.store.EligibleItems(ctx, m.cfg.Scoring.MinScore, m.cfg.Pipeline.MaxItemsPerRun)
	if err != nil {
		return fmt.Errorf("select eligible items: %w", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Info("run stopped before next item",
				logging.String(logging.FieldEventType, "pipeline_run_interrupted"),
				logging.Int("remaining", len(items)-summary.Processed),
			)
			return nil
		}
		summary.Processed++
		units, err := m.processItem(ctx, summary.RunID, item)
		if err != nil {
			summary.Failed++
			if services.KindOf(err) == services.KindCanceled {
				summary.Interrupted = true
			}
			continue
		}
		summary.Completed++
		summary.Scheduled += units
	}
	return nil
}
