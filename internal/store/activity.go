package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// RecordActivity appends a row to the activity log.
func (s *Store) RecordActivity(ctx context.Context, activity *Activity) error {
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO activity_log (operation, subject, outcome, error_kind, message, duration_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.Operation,
		nullableString(activity.Subject),
		activity.Outcome,
		nullableString(activity.ErrorKind),
		nullableString(activity.Message),
		activity.DurationMS,
		formatTime(activity.CreatedAt),
	)
	if err != nil {
		return writeErr("record activity", err)
	}
	activity.ID, _ = res.LastInsertId()
	return nil
}

// ActivityFilter narrows ListActivity.
type ActivityFilter struct {
	Operation string
	Outcome   string
	Since     time.Time
	Limit     int
}

// ListActivity returns activity rows newest first.
func (s *Store) ListActivity(ctx context.Context, filter ActivityFilter) ([]*Activity, error) {
	builder := sqb.Select("id", "operation", "subject", "outcome", "error_kind", "message", "duration_ms", "created_at").
		From("activity_log").
		OrderBy("id DESC")
	if filter.Operation != "" {
		builder = builder.Where(sq.Eq{"operation": filter.Operation})
	}
	if filter.Outcome != "" {
		builder = builder.Where(sq.Eq{"outcome": filter.Outcome})
	}
	if !filter.Since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"created_at": formatTime(filter.Since)})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()
	var out []*Activity
	for rows.Next() {
		var (
			a                      Activity
			subject, kind, message    sql.NullString
			createdRaw             string
		)
		if err := rows.Scan(&a.ID, &a.Operation, &subject, &a.Outcome, &kind, &message, &a.DurationMS, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Subject = subject.String
		a.ErrorKind = kind.String
		a.Message = message.String
		a.CreatedAt, _ = parseTime(createdRaw)
		out = append(out, &a)
	}
	return out, rows.Err()
}
