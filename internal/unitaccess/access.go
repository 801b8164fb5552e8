package unitaccess

import (
	"context"
	"strings"

	"reelcast/internal/apiclient"
	"reelcast/internal/daemon"
)

// Access provides status and unit operations regardless of whether a daemon
// API or the local store backs them.
type Access interface {
	Status(ctx context.Context) (*daemon.Status, error)
	Units(ctx context.Context, statuses []string, limit int) ([]daemon.UnitView, error)
	Requeue(ctx context.Context, unitID int64) (*daemon.UnitView, error)
}

// NewAPIAccess returns an Access backed by the daemon HTTP API.
func NewAPIAccess(client *apiclient.Client) Access {
	return &apiAccess{client: client}
}

type apiAccess struct {
	client *apiclient.Client
}

func (a *apiAccess) Status(ctx context.Context) (*daemon.Status, error) {
	return a.client.Status(ctx)
}

func (a *apiAccess) Units(ctx context.Context, statuses []string, limit int) ([]daemon.UnitView, error) {
	return a.client.Units(ctx, normalizeStatuses(statuses), limit)
}

func (a *apiAccess) Requeue(ctx context.Context, unitID int64) (*daemon.UnitView, error) {
	return a.client.Requeue(ctx, unitID)
}

func normalizeStatuses(statuses []string) []string {
	out := make([]string, 0, len(statuses))
	for _, value := range statuses {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.ToLower(strings.TrimSpace(part)); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
