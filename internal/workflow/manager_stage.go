package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/stage"
	"reelcast/internal/store"
	"reelcast/internal/style"
)

// processItem drives one item through every configured stage. It returns the
// number of units scheduled, or the error that failed the item's log.
func (m *Manager) processItem(ctx context.Context, runID string, item *store.ContentItem) (int, error) {
	ctx = services.WithItemID(ctx, item.ID)
	logger := m.itemLogger(ctx)
	started := time.Now()
	m.setLastItem(item)

	var log *store.ContentLog
	err := m.persist(ctx, func(ctx context.Context) error {
		var err error
		log, err = m.store.CreateLog(ctx, item.ID, runID)
		return err
	})
	if err != nil {
		logging.WarnWithContext(logger, "content log not created", "content_log_create_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.String(logging.FieldImpact, "item skipped this run"),
		)
		m.recordItem(ctx, item.ID, time.Since(started), err)
		return 0, err
	}

	logger.Info("item processing started",
		logging.String(logging.FieldEventType, "item_started"),
		logging.String("title", item.Title),
		logging.String("category", string(item.Category)),
		logging.Float64("score", item.RelevanceScore),
	)

	itemStyle := style.Style{}
	if m.styles != nil {
		itemStyle = m.styles.For(item.Category)
	}
	artifacts := make(map[store.StageName]*store.StageArtifact, 4)
	var previous *store.StageArtifact

	for _, stg := range m.stageList() {
		if ctx.Err() != nil {
			err := fmt.Errorf("interrupted by shutdown before %s: %w", stg.name, ctx.Err())
			m.failLog(ctx, logger, item, log, stg.name, err)
			m.recordItem(ctx, item.ID, time.Since(started), err)
			return 0, err
		}
		job := &stage.Job{
			Item:      item,
			Log:       log,
			Style:     itemStyle,
			Previous:  previous,
			Artifacts: artifacts,
		}
		if err := m.executeStage(ctx, stg, job); err != nil {
			m.failLog(ctx, logger, item, log, stg.name, err)
			m.recordItem(ctx, item.ID, time.Since(started), err)
			return 0, err
		}
		artifacts[stg.name] = job.Output
		previous = job.Output
	}

	if err := m.persist(ctx, func(ctx context.Context) error { return m.store.CompleteLog(ctx, log) }); err != nil {
		m.failLog(ctx, logger, item, log, "", err)
		m.recordItem(ctx, item.ID, time.Since(started), err)
		return 0, err
	}
	m.recordItem(ctx, item.ID, time.Since(started), nil)
	logger.Info("item processing completed",
		logging.String(logging.FieldEventType, "item_completed"),
		logging.Duration("processing_time", log.ProcessingTime),
	)

	return m.schedule(ctx, logger, item, artifacts), nil
}

// executeStage creates the stage artifact, validates inputs, runs the
// provider call with retries, and records the outcome on the log. The stage
// runs detached from ctx so shutdown lets it finish, bounded by stage_timeout.
func (m *Manager) executeStage(ctx context.Context, stg pipelineStage, job *stage.Job) error {
	stageCtx := services.WithStage(ctx, string(stg.name))
	logger := m.itemLogger(stageCtx)

	var parentID int64
	if job.Previous != nil {
		parentID = job.Previous.ID
	}
	var artifact *store.StageArtifact
	if err := m.persist(stageCtx, func(ctx context.Context) error {
		var err error
		artifact, err = m.store.CreateArtifact(ctx, job.Item.ID, stg.name, parentID)
		return err
	}); err != nil {
		return err
	}
	job.Output = artifact

	if aware, ok := stg.handler.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	timeout := time.Duration(m.cfg.Pipeline.StageTimeout) * time.Second
	runCtx := context.WithoutCancel(stageCtx)
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	started := time.Now()
	logger.Debug("stage started", logging.String(logging.FieldEventType, "stage_started"))
	err := stg.handler.Prepare(runCtx, job)
	if err == nil {
		err = services.Retry(runCtx, m.policy, func(ctx context.Context) error {
			return stg.handler.Execute(ctx, job)
		}, func(err error, attempt int, delay time.Duration) {
			logging.WarnWithContext(logger, "stage attempt failed; retrying", "stage_retry",
				logging.Int("attempt", attempt),
				logging.Duration("backoff", delay),
				logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stage delayed"),
			)
		})
	}
	elapsed := time.Since(started)
	err = normalizeStageError(stg.name, err)
	m.recordStage(stageCtx, stg.name, job.Item.ID, elapsed, err)

	if err != nil {
		kind := string(services.KindOf(err))
		message := failureMessage(stg.name, err)
		if ferr := m.persist(stageCtx, func(ctx context.Context) error {
			return m.store.FailArtifact(ctx, artifact, kind, message)
		}); ferr != nil {
			logger.Error("failed to persist artifact failure", logging.Error(ferr))
		}
		if rerr := m.persist(stageCtx, func(ctx context.Context) error {
			return m.store.RecordStage(ctx, job.Log, stg.name, artifact.ID, elapsed)
		}); rerr != nil {
			logger.Error("failed to record failed stage", logging.Error(rerr))
		}
		return err
	}

	if err := m.persist(stageCtx, func(ctx context.Context) error {
		if artifact.Status != store.ArtifactCompleted {
			if err := m.store.CompleteArtifact(ctx, artifact); err != nil {
				return err
			}
		}
		return m.store.RecordStage(ctx, job.Log, stg.name, artifact.ID, elapsed)
	}); err != nil {
		return err
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_completed"),
		logging.Duration("stage_duration", elapsed),
		logging.Int64("artifact_id", artifact.ID),
		logging.Int64("size_bytes", artifact.SizeBytes),
	)
	return nil
}

// persist runs a store write with the shared retry policy. Writes are
// detached from cancellation so a shutdown does not strand a half-recorded log.
func (m *Manager) persist(ctx context.Context, op func(context.Context) error) error {
	if m.store == nil {
		return errors.New("store unavailable")
	}
	return services.Retry(context.WithoutCancel(ctx), m.policy, op, nil)
}

// normalizeStageError makes sure every stage failure carries a kind.
func normalizeStageError(name store.StageName, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *services.Error
	if errors.Is(err, context.DeadlineExceeded) && !errors.As(err, &svcErr) {
		return services.Wrap(services.ErrProviderTimeout, string(name), "execute", "stage timed out", err)
	}
	return err
}

func (m *Manager) schedule(ctx context.Context, logger *slog.Logger, item *store.ContentItem, artifacts map[store.StageName]*store.StageArtifact) int {
	if m.scheduler == nil {
		return 0
	}
	render, metadata := artifacts[store.StageRender], artifacts[store.StageMetadata]
	if render == nil || metadata == nil {
		logger.Debug("scheduling skipped; render or metadata stage not configured")
		return 0
	}
	units, err := m.scheduler.ScheduleForPublication(context.WithoutCancel(ctx), render, metadata)
	if err != nil {
		logging.WarnWithContext(logger, "scheduling failed", "schedule_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
			logging.String(logging.FieldErrorHint, services.Details(err).Hint),
			logging.String(logging.FieldImpact, "item completed but has no scheduled units"),
		)
		m.notifyItemFailed(ctx, item, "schedule", err)
		return 0
	}
	return len(units)
}
