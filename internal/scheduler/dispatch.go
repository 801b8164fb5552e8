package scheduler

import (
	"context"
	"errors"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/notifications"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// DispatchResult summarizes one dispatch pass.
type DispatchResult struct {
	Published int
	Failed    int
}

// Run dispatches due units every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	tick := time.Duration(s.cfg.Scheduler.TickSeconds) * time.Second
	if tick <= 0 {
		tick = time.Minute
	}
	s.setRunning(true)
	defer s.setRunning(false)
	s.logger.Info("dispatch loop started",
		logging.String(logging.FieldEventType, "dispatch_loop_started"),
		logging.Duration("tick", tick),
	)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		if _, err := s.DispatchDue(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(s.logger, "dispatch pass failed", "dispatch_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database health with reelcast status"),
				logging.String(logging.FieldImpact, "due units wait for the next tick"),
			)
		}
		select {
		case <-ctx.Done():
			s.logger.Info("dispatch loop stopped", logging.String(logging.FieldEventType, "dispatch_loop_stopped"))
			return
		case <-ticker.C:
		}
	}
}

// DispatchDue publishes every unit whose slot has passed. Each unit is
// attempted once; failures are recorded and never retried here.
func (s *Scheduler) DispatchDue(ctx context.Context) (DispatchResult, error) {
	var result DispatchResult
	now := s.now()
	s.mu.Lock()
	s.lastTick = now
	s.mu.Unlock()

	due, err := s.store.DueUnits(ctx, now, dispatchBatch)
	if err != nil {
		return result, err
	}
	for _, unit := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if s.dispatch(ctx, unit) {
			result.Published++
		} else {
			result.Failed++
		}
	}
	s.mu.Lock()
	s.dispatched += result.Published
	s.failed += result.Failed
	s.mu.Unlock()
	return result, nil
}

func (s *Scheduler) dispatch(ctx context.Context, unit *store.ScheduledUnit) bool {
	unitCtx := services.WithPlatform(services.WithItemID(ctx, unit.ItemID), unit.Platform)
	logger := logging.WithContext(unitCtx, s.logger).With(logging.Int64(logging.FieldUnitID, unit.ID))

	start := time.Now()
	receipt, err := s.publisher.Publish(unitCtx, unit)
	elapsed := time.Since(start)
	if err == nil {
		// The post exists even if the run is stopping; record it.
		err = s.store.MarkPublished(context.WithoutCancel(unitCtx), unit, receipt.ExternalID, receipt.URL)
		if err != nil {
			logger.Error("published unit could not be marked",
				logging.String(logging.FieldEventType, "unit_mark_failed"),
				logging.String("external_id", receipt.ExternalID),
				logging.Error(err),
			)
			s.recorder.Publish(unitCtx, unit, elapsed, err)
			return false
		}
		s.recorder.Publish(unitCtx, unit, elapsed, nil)
		return true
	}

	s.recorder.Publish(unitCtx, unit, elapsed, err)
	if errors.Is(err, context.Canceled) {
		logger.Debug("publish interrupted by shutdown")
		return false
	}
	details := services.Details(err)
	if markErr := s.store.MarkUnitFailed(context.WithoutCancel(unitCtx), unit, string(services.KindOf(err)), err.Error()); markErr != nil {
		logger.Error("failed unit could not be marked", logging.Error(markErr))
	}
	logging.WarnWithContext(logger, "publish failed", "publish_failed",
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOp, details.Operation),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the platform issue then run reelcast units requeue"),
		logging.String(logging.FieldImpact, "unit marked failed and will not be retried automatically"),
	)
	if notifyErr := s.notifier.Publish(unitCtx, notifications.EventPublishFailed, notifications.Payload{
		"unit_id":  unit.ID,
		"platform": unit.Platform,
		"error":    err,
	}); notifyErr != nil {
		logger.Debug("publish failure notification failed", logging.Error(notifyErr))
	}
	return false
}

func (s *Scheduler) setRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
}
