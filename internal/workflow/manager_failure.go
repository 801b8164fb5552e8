package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// failLog moves the item's log to failed. Later stages never run for it;
// other items in the run are unaffected.
func (m *Manager) failLog(ctx context.Context, logger *slog.Logger, item *store.ContentItem, log *store.ContentLog, name store.StageName, stageErr error) {
	details := services.Details(stageErr)
	message := failureMessage(name, stageErr)

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "item_failed"),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOp, details.Operation),
		logging.String("error_message", message),
	}
	if name != "" {
		attrs = append(attrs, logging.String("failed_stage", string(name)))
	}
	if details.Hint != "" {
		attrs = append(attrs, logging.String(logging.FieldErrorHint, details.Hint))
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	} else {
		attrs = append(attrs, logging.Error(stageErr))
	}
	logger.Error("item failed", logging.Args(attrs...)...)

	if err := m.persist(ctx, func(ctx context.Context) error {
		return m.store.FailLog(ctx, log, string(details.Kind), message)
	}); err != nil {
		logger.Error("failed to persist log failure", logging.Error(err))
	}
	m.setLastError(stageErr)
	if details.Kind != services.KindCanceled {
		m.notifyItemFailed(ctx, item, name, stageErr)
	}
}

func failureMessage(name store.StageName, err error) string {
	if err == nil {
		return stageMessage(name, "failed without error detail")
	}
	details := services.Details(err)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = strings.TrimSpace(err.Error())
	}
	if message == "" {
		message = stageMessage(name, "failed")
	}
	return message
}

func stageMessage(name store.StageName, msg string) string {
	if name != "" {
		return fmt.Sprintf("%s %s", name, msg)
	}
	return fmt.Sprintf("workflow %s", msg)
}
