package workflow

import (
	"context"
	"log/slog"
	"strings"

	"reelcast/internal/logging"
	"reelcast/internal/preflight"
	"reelcast/internal/services"
)

// runPreflightChecks validates storage and provider readiness before a run.
// Returns nil when all checks pass, or a configuration error listing failures.
func (m *Manager) runPreflightChecks(ctx context.Context, logger *slog.Logger) error {
	if m.preflight == nil {
		return nil
	}
	results := m.preflight(ctx, m.cfg)
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue; the next run retries automatically"),
		)
	}

	if failures := preflight.Failures(results); len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "preflight",
			"preflight checks failed: "+strings.Join(failures, "; "), nil)
	}
	return nil
}
