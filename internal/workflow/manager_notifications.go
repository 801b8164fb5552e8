package workflow

import (
	"context"
	"errors"

	"reelcast/internal/logging"
	"reelcast/internal/notifications"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

func (m *Manager) notifyRunCompleted(ctx context.Context, summary RunSummary) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(context.WithoutCancel(ctx), notifications.EventRunCompleted, notifications.Payload{
		"processed": summary.Processed,
		"failed":    summary.Failed,
		"duration":  summary.Duration,
	}); err != nil {
		m.logger.Debug("run summary notification failed", logging.Error(err))
	}
}

func (m *Manager) notifyItemFailed(ctx context.Context, item *store.ContentItem, name store.StageName, itemErr error) {
	if m.notifier == nil || itemErr == nil || item == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventItemFailed, notifications.Payload{
		"title": item.Title,
		"stage": string(name),
		"kind":  string(services.KindOf(itemErr)),
		"error": itemErr,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send item failure notification")
		} else {
			m.logger.Debug("item failure notification failed", logging.Error(err))
		}
	}
}
