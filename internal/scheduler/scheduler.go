package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reelcast/internal/config"
	"reelcast/internal/logging"
	"reelcast/internal/metrics"
	"reelcast/internal/notifications"
	"reelcast/internal/publisher"
	"reelcast/internal/services"
	"reelcast/internal/stage"
	"reelcast/internal/store"
)

const dispatchBatch = 50

// Publisher delivers one unit.
type Publisher interface {
	Publish(ctx context.Context, unit *store.ScheduledUnit) (publisher.Receipt, error)
}

// Status is the scheduler's runtime view.
type Status struct {
	Running    bool        `json:"running"`
	LastTick   *time.Time  `json:"last_tick,omitempty"`
	Dispatched int         `json:"dispatched"`
	Failed     int         `json:"failed"`
	Upcoming   []time.Time `json:"upcoming_slots"`
}

// Scheduler assigns slots and dispatches due units.
type Scheduler struct {
	cfg       *config.Config
	store     *store.Store
	publisher Publisher
	converter Converter
	recorder  *metrics.Recorder
	notifier  notifications.Service
	logger    *slog.Logger
	slots     []slotClock
	now       func() time.Time

	// serializes slot search and unit creation
	assign sync.Mutex

	mu         sync.RWMutex
	running    bool
	lastTick   time.Time
	dispatched int
	failed     int
}

// Option customizes the scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithConverter overrides the format-conversion hook.
func WithConverter(c Converter) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.converter = c
		}
	}
}

// WithRecorder records fan-out and publish activity.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Scheduler) { s.recorder = r }
}

// WithNotifier sends publish-failure notifications.
func WithNotifier(n notifications.Service) Option {
	return func(s *Scheduler) {
		if n != nil {
			s.notifier = n
		}
	}
}

// New builds a scheduler from the [scheduler] and [[platforms]] sections.
func New(cfg *config.Config, st *store.Store, pub Publisher, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	slots, err := parseSlots(cfg.Scheduler.Slots)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "scheduler", "parse slots", err.Error(), err)
	}
	s := &Scheduler{
		cfg:       cfg,
		store:     st,
		publisher: pub,
		converter: PlanConverter{},
		notifier:  notifications.NewService(&config.Config{}),
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		slots:     slots,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NextSlots returns the next n slot times regardless of occupancy.
func (s *Scheduler) NextSlots(n int) []time.Time {
	return nextSlots(s.slots, s.now(), n)
}

// ScheduleForPublication fans a finished artifact out into one scheduled unit
// per enabled platform, all sharing the next free slot.
func (s *Scheduler) ScheduleForPublication(ctx context.Context, render, metadata *store.StageArtifact) ([]*store.ScheduledUnit, error) {
	units, err := s.schedule(ctx, render, metadata)
	var itemID int64
	if render != nil {
		itemID = render.ItemID
	}
	s.recorder.Schedule(ctx, itemID, len(units), err)
	return units, err
}

func (s *Scheduler) schedule(ctx context.Context, render, metadata *store.StageArtifact) ([]*store.ScheduledUnit, error) {
	video, err := decodeInput[stage.Render](render, store.StageRender)
	if err != nil {
		return nil, err
	}
	meta, err := decodeInput[stage.Metadata](metadata, store.StageMetadata)
	if err != nil {
		return nil, err
	}
	if render.ItemID != metadata.ItemID {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "schedule", "render and metadata belong to different items", nil)
	}
	platforms := s.cfg.EnabledPlatforms()
	if len(platforms) == 0 {
		return nil, services.WithHint(
			services.Wrap(services.ErrConfiguration, "scheduler", "schedule", "no platforms enabled", nil),
			"enable at least one [[platforms]] entry",
		)
	}

	item, err := s.store.GetItem(ctx, render.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "schedule", fmt.Sprintf("item %d not found", render.ItemID), nil)
	}

	units := make([]*store.ScheduledUnit, 0, len(platforms))
	for _, p := range platforms {
		variant, err := s.converter.Plan(p, Adapt(p, video, meta))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "scheduler", "convert", fmt.Sprintf("plan %s variant", p.Name), err)
		}
		variant.ContentHash = item.ContentHash
		unit := &store.ScheduledUnit{
			ItemID:             render.ItemID,
			RenderArtifactID:   render.ID,
			MetadataArtifactID: metadata.ID,
			Platform:           p.Name,
			Metadata:           variant,
		}
		if !p.TextOnly {
			unit.PayloadURL = video.VideoURL
		}
		units = append(units, unit)
	}

	slot, err := s.place(ctx, units)
	if err != nil {
		return nil, err
	}
	s.logger.Info("artifact scheduled",
		logging.String(logging.FieldEventType, "artifact_scheduled"),
		logging.Int64(logging.FieldItemID, render.ItemID),
		logging.Time("slot", slot),
		logging.Int("units", len(units)),
	)
	return units, nil
}

// Requeue creates a new scheduled unit from a failed one. The failed unit
// keeps its status.
func (s *Scheduler) Requeue(ctx context.Context, unitID int64) (*store.ScheduledUnit, error) {
	failed, err := s.store.GetUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if failed == nil {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "requeue", fmt.Sprintf("unit %d not found", unitID), nil)
	}
	if failed.Status != store.UnitFailed {
		return nil, services.Wrap(services.ErrValidation, "scheduler", "requeue",
			fmt.Sprintf("unit %d is %s; only failed units can be requeued", unitID, failed.Status), nil)
	}
	unit := &store.ScheduledUnit{
		ItemID:             failed.ItemID,
		RenderArtifactID:   failed.RenderArtifactID,
		MetadataArtifactID: failed.MetadataArtifactID,
		Platform:           failed.Platform,
		PayloadURL:         failed.PayloadURL,
		Metadata:           failed.Metadata,
		RequeuedFrom:       failed.ID,
	}
	if _, err := s.place(ctx, []*store.ScheduledUnit{unit}); err != nil {
		return nil, err
	}
	s.logger.Info("unit requeued",
		logging.String(logging.FieldEventType, "unit_requeued"),
		logging.Int64(logging.FieldUnitID, unit.ID),
		logging.Int64("requeued_from", failed.ID),
		logging.String(logging.FieldPlatform, unit.Platform),
		logging.Time("slot", unit.ScheduledTime),
	)
	return unit, nil
}

// place stamps units with the earliest free slot and persists them.
func (s *Scheduler) place(ctx context.Context, units []*store.ScheduledUnit) (time.Time, error) {
	s.assign.Lock()
	defer s.assign.Unlock()

	now := s.now()
	days := s.cfg.Scheduler.MaxDaysAhead
	candidates := upcoming(s.slots, now, days)
	if len(candidates) == 0 {
		return time.Time{}, services.Wrap(services.ErrValidation, "scheduler", "place", "no slots configured", nil)
	}
	occupied, err := s.store.OccupiedSlots(ctx, candidates[0], candidates[len(candidates)-1].Add(time.Minute))
	if err != nil {
		return time.Time{}, err
	}
	for _, slot := range candidates {
		if occupied[slot] {
			continue
		}
		for _, unit := range units {
			unit.ScheduledTime = slot
		}
		err := s.store.CreateUnits(ctx, units)
		if err == nil {
			return slot, nil
		}
		if !errors.Is(err, services.ErrValidation) {
			return time.Time{}, err
		}
		// Another writer claimed the slot between the read and the insert.
		occupied[slot] = true
	}
	return time.Time{}, services.WithHint(
		services.Wrap(services.ErrValidation, "scheduler", "place",
			fmt.Sprintf("every slot in the next %d days is occupied", days), nil),
		"add slots or raise scheduler.max_days_ahead",
	)
}

// Status reports the scheduler's runtime state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := Status{
		Running:    s.running,
		Dispatched: s.dispatched,
		Failed:     s.failed,
		Upcoming:   s.NextSlots(s.cfg.Scheduler.SlotsAhead),
	}
	if !s.lastTick.IsZero() {
		tick := s.lastTick
		status.LastTick = &tick
	}
	return status
}

func decodeInput[T any](artifact *store.StageArtifact, want store.StageName) (T, error) {
	var out T
	if artifact == nil || artifact.Stage != want || artifact.Status != store.ArtifactCompleted {
		return out, services.Wrap(services.ErrValidation, "scheduler", "load input",
			fmt.Sprintf("completed %s artifact required", want), nil)
	}
	if err := artifact.DecodeData(&out); err != nil {
		return out, services.Wrap(services.ErrValidation, "scheduler", "load input",
			fmt.Sprintf("decode %s artifact %d", want, artifact.ID), err)
	}
	return out, nil
}
