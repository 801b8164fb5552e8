package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reelcast/internal/logging"
	"reelcast/internal/services"
	"reelcast/internal/store"
)

// Outcome labels shared by activity rows and collectors.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSkipped    = "skipped"
	OutcomeSuppressed = "suppressed"
	OutcomeQuota      = "quota_exhausted"
)

// Activity operation names.
const (
	OpFetch       = "fetch"
	OpStagePrefix = "stage."
	OpItem        = "item"
	OpSchedule    = "schedule"
	OpPublish     = "publish"
	OpPoll        = "poll"
	OpReply       = "reply"
)

// Recorder persists activity rows and updates collectors.
type Recorder struct {
	store      *store.Store
	collectors *Collectors
	logger     *slog.Logger
}

// NewRecorder builds a recorder. Either dependency may be nil.
func NewRecorder(st *store.Store, collectors *Collectors, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:      st,
		collectors: collectors,
		logger:     logging.NewComponentLogger(logger, "metrics"),
	}
}

// Stage records one stage transformer call.
func (r *Recorder) Stage(ctx context.Context, stage store.StageName, itemID int64, duration time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := outcomeOf(err)
	if r.collectors != nil {
		r.collectors.StageDuration.WithLabelValues(string(stage), outcome).Observe(duration.Seconds())
	}
	r.write(ctx, OpStagePrefix+string(stage), itemSubject(itemID), outcome, duration, err)
}

// Item records an item reaching a terminal ContentLog state.
func (r *Recorder) Item(ctx context.Context, itemID int64, duration time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := outcomeOf(err)
	if r.collectors != nil {
		r.collectors.Items.WithLabelValues(outcome).Inc()
	}
	r.write(ctx, OpItem, itemSubject(itemID), outcome, duration, err)
}

// FetchSource records the outcome of one source pull. Counts are keyed by
// result: fetched, accepted, duplicate, below_threshold, malformed.
func (r *Recorder) FetchSource(ctx context.Context, source string, counts map[string]int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	if r.collectors != nil {
		for result, n := range counts {
			if n > 0 {
				r.collectors.FetchItems.WithLabelValues(source, result).Add(float64(n))
			}
		}
	}
	r.write(ctx, OpFetch, "source:"+source, outcomeOf(err), duration, err)
}

// Schedule records a fan-out of scheduled units.
func (r *Recorder) Schedule(ctx context.Context, itemID int64, units int, err error) {
	if r == nil {
		return
	}
	subject := itemSubject(itemID)
	if err == nil {
		subject = fmt.Sprintf("%s units:%d", subject, units)
	}
	r.write(ctx, OpSchedule, subject, outcomeOf(err), 0, err)
}

// Publish records one publish attempt.
func (r *Recorder) Publish(ctx context.Context, unit *store.ScheduledUnit, duration time.Duration, err error) {
	if r == nil || unit == nil {
		return
	}
	outcome := outcomeOf(err)
	if r.collectors != nil {
		r.collectors.Publish.WithLabelValues(unit.Platform, outcome).Inc()
	}
	r.write(ctx, OpPublish, fmt.Sprintf("unit:%d platform:%s", unit.ID, unit.Platform), outcome, duration, err)
}

// Poll records one comment poll against a published post.
func (r *Recorder) Poll(ctx context.Context, platform string, comments int, duration time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := outcomeOf(err)
	if r.collectors != nil {
		r.collectors.Polls.WithLabelValues(platform, outcome).Inc()
	}
	r.write(ctx, OpPoll, fmt.Sprintf("platform:%s comments:%d", platform, comments), outcome, duration, err)
}

// Reply records the resolution of one interaction.
func (r *Recorder) Reply(ctx context.Context, record *store.InteractionRecord, duration time.Duration, err error) {
	if r == nil || record == nil {
		return
	}
	outcome := replyOutcome(record.ReplyStatus)
	if err != nil {
		outcome = OutcomeFailure
	}
	if r.collectors != nil {
		r.collectors.Replies.WithLabelValues(record.Platform, outcome).Inc()
	}
	r.write(ctx, OpReply, fmt.Sprintf("platform:%s comment:%s", record.Platform, record.ExternalCommentID), outcome, duration, err)
}

// RateLimitWait counts a call delayed by the client-side limiter.
func (r *Recorder) RateLimitWait(api string) {
	if r == nil || r.collectors == nil {
		return
	}
	r.collectors.RateLimitWaits.WithLabelValues(api).Inc()
}

func (r *Recorder) write(ctx context.Context, operation, subject, outcome string, duration time.Duration, err error) {
	if r.store == nil {
		return
	}
	activity := &store.Activity{
		Operation:  operation,
		Subject:    subject,
		Outcome:    outcome,
		DurationMS: duration.Milliseconds(),
	}
	if err != nil {
		activity.ErrorKind = string(services.KindOf(err))
		activity.Message = err.Error()
	}
	// Activity rows outlive a canceled run context.
	if writeErr := r.store.RecordActivity(context.WithoutCancel(ctx), activity); writeErr != nil {
		logging.WarnWithContext(r.logger, "activity write failed", "activity_write_failed",
			logging.String("operation", operation),
			logging.Error(writeErr),
			logging.String(logging.FieldErrorHint, "check database health with reelcast status"),
			logging.String(logging.FieldImpact, "postmortem trail is missing this entry"),
		)
	}
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func replyOutcome(status store.ReplyStatus) string {
	switch status {
	case store.ReplySent:
		return OutcomeSuccess
	case store.ReplySuppressed:
		return OutcomeSuppressed
	case store.ReplyQuotaExhausted:
		return OutcomeQuota
	case store.ReplyFailed:
		return OutcomeFailure
	default:
		return OutcomeSkipped
	}
}

func itemSubject(itemID int64) string {
	return fmt.Sprintf("item:%d", itemID)
}
