package workflow

import (
	"context"
	"log/slog"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/store"
)

// itemLogger returns the manager logger tagged with the item, stage, and run
// carried by ctx.
func (m *Manager) itemLogger(ctx context.Context) *slog.Logger {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	return logging.WithContext(ctx, base)
}

func (m *Manager) recordStage(ctx context.Context, name store.StageName, itemID int64, elapsed time.Duration, err error) {
	if m.recorder != nil {
		m.recorder.Stage(ctx, name, itemID, elapsed, err)
	}
}

func (m *Manager) recordItem(ctx context.Context, itemID int64, elapsed time.Duration, err error) {
	if m.recorder != nil {
		m.recorder.Item(context.WithoutCancel(ctx), itemID, elapsed, err)
	}
}
