package interaction

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
	"reelcast/internal/publisher"
	"reelcast/internal/services"
	"reelcast/internal/services/platform"
	"reelcast/internal/store"
)

const pollBatch = 200

// Platforms resolves a platform client by name.
type Platforms interface {
	Get(name string) (publisher.Platform, bool)
}

// Status is the interaction bot's runtime view.
type Status struct {
	Running          bool           `json:"running"`
	Enabled          bool           `json:"enabled"`
	LastPoll         *time.Time     `json:"last_poll,omitempty"`
	RepliesThisHour  map[string]int `json:"replies_this_hour"`
	RepliesPerHour   int            `json:"replies_per_hour"`
	CommentsRecorded int            `json:"comments_recorded"`
	RepliesSent      int            `json:"replies_sent"`
}

// PollResult summarizes one poll pass.
type PollResult struct {
	Units     int
	Comments  int
	Recorded  int
	Replied   int
	Throttled int
	Failed    int
}

// Monitor polls published units for comments and replies within quota.
type Monitor struct {
	cfg       *config.Config
	store     *store.Store
	platforms Platforms
	templates *Templates
	quota     *Quota
	recorder  *metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time

	// one comment at a time so quota and idempotence checks see settled state
	handle sync.Mutex

	mu       sync.RWMutex
	running  bool
	lastPoll time.Time
	recorded int
	replied  int
}

// Option customizes the monitor.
type Option func(*Monitor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRecorder records polls and replies.
func WithRecorder(r *metrics.Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

// New builds a monitor from the [interaction] section.
func New(cfg *config.Config, st *store.Store, platforms Platforms, logger *slog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:       cfg,
		store:     st,
		platforms: platforms,
		templates: NewTemplates(cfg.Interaction.Templates),
		quota:     NewQuota(cfg.Interaction.RepliesPerHour, st),
		logger:    logging.NewComponentLogger(logger, "interaction"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls every poll_interval_seconds until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if !m.cfg.Interaction.Enabled {
		m.logger.Info("interaction monitor disabled", logging.String(logging.FieldEventType, "interaction_disabled"))
		return
	}
	interval := time.Duration(m.cfg.Interaction.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	m.setRunning(true)
	defer m.setRunning(false)
	m.logger.Info("interaction monitor started",
		logging.String(logging.FieldEventType, "interaction_loop_started"),
		logging.Duration("interval", interval),
		logging.Int("replies_per_hour", m.cfg.Interaction.RepliesPerHour),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := m.PollOnce(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(m.logger, "interaction poll failed", "interaction_poll_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check database health with reelcast status"),
				logging.String(logging.FieldImpact, "comments wait for the next poll"),
			)
		}
		select {
		case <-ctx.Done():
			m.logger.Info("interaction monitor stopped", logging.String(logging.FieldEventType, "interaction_loop_stopped"))
			return
		case <-ticker.C:
		}
	}
}

// PollOnce lists comments on every unit published within the lookback window
// and handles each one. A platform that fails to list comments is skipped for
// this pass.
func (m *Monitor) PollOnce(ctx context.Context) (PollResult, error) {
	var result PollResult
	now := m.now()
	m.mu.Lock()
	m.lastPoll = now
	m.mu.Unlock()

	lookback := time.Duration(m.cfg.Interaction.LookbackHours) * time.Hour
	units, err := m.store.ListUnits(ctx, store.UnitFilter{
		Statuses:       []store.UnitStatus{store.UnitPublished},
		PublishedSince: now.Add(-lookback),
		Limit:          pollBatch,
	})
	if err != nil {
		return result, err
	}

	for _, unit := range units {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if unit.ExternalID == "" {
			continue
		}
		client, ok := m.platforms.Get(unit.Platform)
		if !ok {
			continue
		}
		result.Units++
		pollCtx := services.WithPlatform(ctx, unit.Platform)
		started := time.Now()
		comments, err := client.ListComments(pollCtx, unit.ExternalID)
		if m.recorder != nil {
			m.recorder.Poll(pollCtx, unit.Platform, len(comments), time.Since(started), err)
		}
		if err != nil {
			logging.WarnWithContext(logging.WithContext(pollCtx, m.logger), "comment poll failed", "comment_poll_failed",
				logging.Int64(logging.FieldUnitID, unit.ID),
				logging.String(logging.FieldErrorKind, string(services.KindOf(err))),
				logging.Error(err),
				logging.String(logging.FieldImpact, "comments on this post wait for the next poll"),
			)
			continue
		}
		result.Comments += len(comments)
		for _, comment := range comments {
			outcome, err := m.Handle(pollCtx, unit, client, comment)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				result.Failed++
				continue
			}
			switch outcome {
			case OutcomeDuplicate:
				continue
			case OutcomeReplied:
				result.Replied++
			case OutcomeThrottled:
				result.Throttled++
			case OutcomeFailed:
				result.Failed++
			}
			result.Recorded++
		}
	}

	if result.Recorded > 0 {
		m.logger.Info("interaction poll complete",
			logging.String(logging.FieldEventType, "interaction_poll_complete"),
			logging.Int("units", result.Units),
			logging.Int("comments", result.Comments),
			logging.Int("recorded", result.Recorded),
			logging.Int("replied", result.Replied),
			logging.Int("throttled", result.Throttled),
			logging.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// Outcome describes what happened to one comment.
type Outcome string

const (
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeThrottled  Outcome = "throttled"
	OutcomeReplied    Outcome = "replied"
	OutcomeFailed     Outcome = "failed"
)

// Commenter is the platform surface a reply needs.
type Commenter interface {
	Reply(ctx context.Context, commentID, text string) (string, error)
}

// Handle records one comment and replies when its sentiment and the quota
// allow. Replaying a comment already recorded returns OutcomeDuplicate and
// sends nothing.
func (m *Monitor) Handle(ctx context.Context, unit *store.ScheduledUnit, client Commenter, comment platform.Comment) (Outcome, error) {
	m.handle.Lock()
	defer m.handle.Unlock()

	logger := logging.WithContext(ctx, m.logger).With(
		logging.Int64(logging.FieldUnitID, unit.ID),
		logging.String("comment_id", comment.ID),
	)
	record := &store.InteractionRecord{
		Platform:          unit.Platform,
		UnitID:            unit.ID,
		ExternalPostID:    unit.ExternalID,
		ExternalCommentID: comment.ID,
		Author:            comment.Author,
		Text:              comment.Text,
		Sentiment:         Classify(comment.Text),
	}
	inserted, err := m.store.RecordInteraction(ctx, record)
	if err != nil {
		return "", fmt.Errorf("record interaction: %w", err)
	}
	if !inserted {
		return OutcomeDuplicate, nil
	}
	m.mu.Lock()
	m.recorded++
	m.mu.Unlock()

	started := time.Now()
	outcome, replyErr := m.reply(ctx, client, record)
	if err := m.store.UpdateReply(context.WithoutCancel(ctx), record); err != nil {
		return "", fmt.Errorf("update reply: %w", err)
	}
	if m.recorder != nil {
		m.recorder.Reply(ctx, record, time.Since(started), replyErr)
	}

	switch outcome {
	case OutcomeReplied:
		m.mu.Lock()
		m.replied++
		m.mu.Unlock()
		logger.Info("comment answered",
			logging.String(logging.FieldEventType, "comment_replied"),
			logging.String("sentiment", string(record.Sentiment)),
			logging.String("reply_id", record.ResponseExternalID),
		)
	case OutcomeThrottled:
		logger.Info("reply quota exhausted; comment recorded without reply",
			logging.String(logging.FieldEventType, "reply_throttled"),
			logging.String("sentiment", string(record.Sentiment)),
		)
	case OutcomeFailed:
		logging.WarnWithContext(logger, "reply failed", "reply_failed",
			logging.String(logging.FieldErrorKind, string(services.KindOf(replyErr))),
			logging.Error(replyErr),
			logging.String(logging.FieldImpact, "comment stays unanswered"),
		)
	default:
		logger.Debug("comment recorded",
			logging.String(logging.FieldEventType, "comment_recorded"),
			logging.String("sentiment", string(record.Sentiment)),
		)
	}
	return outcome, nil
}

// reply decides and sends the response, leaving the final state on record.
func (m *Monitor) reply(ctx context.Context, client Commenter, record *store.InteractionRecord) (Outcome, error) {
	if !Answerable(record.Sentiment) {
		record.ReplyStatus = store.ReplySuppressed
		return OutcomeSuppressed, nil
	}
	if !m.templates.Has(record.Sentiment) {
		record.ReplyStatus = store.ReplySuppressed
		return OutcomeSuppressed, nil
	}

	now := m.now()
	allowed, err := m.quota.Reserve(ctx, record.Platform, now)
	if err != nil {
		record.ReplyStatus = store.ReplyFailed
		record.ErrorMessage = err.Error()
		return OutcomeFailed, err
	}
	if !allowed {
		record.ReplyStatus = store.ReplyQuotaExhausted
		return OutcomeThrottled, nil
	}
	// Only comments that will be answered advance the rotation.
	text, _ := m.templates.Next(record.Sentiment)

	replyID, err := client.Reply(ctx, record.ExternalCommentID, text)
	if err == nil && replyID == "" {
		err = errors.New("platform returned empty reply id")
	}
	if err != nil {
		m.quota.Release(record.Platform, now)
		record.ReplyStatus = store.ReplyFailed
		record.GeneratedResponse = text
		record.ErrorMessage = err.Error()
		return OutcomeFailed, err
	}
	record.ReplyStatus = store.ReplySent
	record.GeneratedResponse = text
	record.ResponseExternalID = replyID
	return OutcomeReplied, nil
}

// Status reports loop state and quota usage for the current hour.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	status := Status{
		Running:          m.running,
		Enabled:          m.cfg.Interaction.Enabled,
		RepliesPerHour:   m.cfg.Interaction.RepliesPerHour,
		CommentsRecorded: m.recorded,
		RepliesSent:      m.replied,
	}
	if !m.lastPoll.IsZero() {
		poll := m.lastPoll
		status.LastPoll = &poll
	}
	m.mu.RUnlock()
	status.RepliesThisHour = m.quota.Used(m.now())
	return status
}

func (m *Monitor) setRunning(running bool) {
	m.mu.Lock()
	m.running = running
	m.mu.Unlock()
}
