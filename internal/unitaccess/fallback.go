package unitaccess

import (
	"context"
	"errors"
	"fmt"

	"reelcast/internal/apiclient"
	"reelcast/internal/daemon"
	"reelcast/internal/daemonrun"
	"reelcast/internal/preflight"
	"reelcast/internal/store"
)

// NewStoreAccess returns an Access backed by a locally built runtime. The
// caller owns the runtime and must close it.
func NewStoreAccess(rt *daemonrun.Runtime) Access {
	return &storeAccess{rt: rt}
}

type storeAccess struct {
	rt *daemonrun.Runtime
}

func (a *storeAccess) Status(ctx context.Context) (*daemon.Status, error) {
	sched := a.rt.Scheduler.Status()
	monitor := a.rt.Monitor.Status()
	return &daemon.Status{
		Running:     false,
		Workflow:    a.rt.Workflow.Status(ctx),
		Scheduler:   &sched,
		Interaction: &monitor,
		Database:    a.rt.Store.CheckHealth(ctx),
		Preflight:   preflight.RunAll(ctx, a.rt.Config),
	}, nil
}

func (a *storeAccess) Units(ctx context.Context, statuses []string, limit int) ([]daemon.UnitView, error) {
	var filter store.UnitFilter
	for _, s := range normalizeStatuses(statuses) {
		filter.Statuses = append(filter.Statuses, store.UnitStatus(s))
	}
	filter.Limit = limit
	units, err := a.rt.Store.ListUnits(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]daemon.UnitView, 0, len(units))
	for _, u := range units {
		views = append(views, daemon.NewUnitView(u))
	}
	return views, nil
}

func (a *storeAccess) Requeue(ctx context.Context, unitID int64) (*daemon.UnitView, error) {
	unit, err := a.rt.Scheduler.Requeue(ctx, unitID)
	if err != nil {
		return nil, err
	}
	view := daemon.NewUnitView(unit)
	return &view, nil
}

// Open prefers the daemon API and falls back to a local runtime when no
// daemon answers. The returned close function releases whatever was opened.
func Open(ctx context.Context, build func() (*daemonrun.Runtime, error), client *apiclient.Client) (Access, func() error, error) {
	if client != nil {
		if _, err := client.Status(ctx); err == nil {
			return NewAPIAccess(client), func() error { return nil }, nil
		} else if !errors.Is(err, apiclient.ErrUnavailable) {
			return nil, nil, err
		}
	}
	rt, err := build()
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}
	return NewStoreAccess(rt), rt.Close, nil
}
