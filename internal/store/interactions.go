package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var interactionColumns = []string{
	"id", "platform", "unit_id", "external_post_id", "external_comment_id", "author", "comment_text",
	"sentiment", "reply_status", "generated_response", "response_external_id", "error_message",
	"replied_at", "created_at",
}

// RecordInteraction inserts a new interaction. It reports false without
// modifying anything when (platform, external comment id) is already recorded.
func (s *Store) RecordInteraction(ctx context.Context, record *InteractionRecord) (bool, error) {
	if record == nil {
		return false, errors.New("interaction is nil")
	}
	if record.Platform == "" || record.ExternalCommentID == "" {
		return false, errors.New("interaction requires platform and external comment id")
	}
	if record.ReplyStatus == "" {
		record.ReplyStatus = ReplyPending
	}
	record.CreatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO interaction_records (
            platform, unit_id, external_post_id, external_comment_id, author, comment_text,
            sentiment, reply_status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(platform, external_comment_id) DO NOTHING`,
		record.Platform,
		nullableID(record.UnitID),
		record.ExternalPostID,
		record.ExternalCommentID,
		nullableString(record.Author),
		nullableString(record.Text),
		string(record.Sentiment),
		string(record.ReplyStatus),
		formatTime(record.CreatedAt),
	)
	if err != nil {
		return false, writeErr("record interaction", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, writeErr("record interaction", err)
	}
	if affected == 0 {
		return false, nil
	}
	if record.ID, err = res.LastInsertId(); err != nil {
		return false, writeErr("record interaction", err)
	}
	return true, nil
}

// UpdateReply records the reply outcome for a pending interaction.
func (s *Store) UpdateReply(ctx context.Context, record *InteractionRecord) error {
	var repliedAt any
	if record.ReplyStatus == ReplySent {
		now := time.Now().UTC()
		record.RepliedAt = &now
		repliedAt = formatTime(now)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE interaction_records
         SET reply_status = ?, generated_response = ?, response_external_id = ?, error_message = ?, replied_at = ?
         WHERE id = ? AND reply_status = ?`,
		string(record.ReplyStatus),
		nullableString(record.GeneratedResponse),
		nullableString(record.ResponseExternalID),
		nullableString(record.ErrorMessage),
		repliedAt,
		record.ID,
		string(ReplyPending),
	)
	if err != nil {
		return writeErr("update reply", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr("update reply", err)
	}
	if affected == 0 {
		return fmt.Errorf("update reply: %w: interaction %d already resolved", ErrInvalidTransition, record.ID)
	}
	return nil
}

// CountRepliesSince counts replies sent on a platform at or after since.
func (s *Store) CountRepliesSince(ctx context.Context, platform string, since time.Time) (int, error) {
	query, args, err := sqb.Select("COUNT(1)").
		From("interaction_records").
		Where(sq.Eq{"platform": platform, "reply_status": string(ReplySent)}).
		Where(sq.GtOrEq{"replied_at": formatTime(since)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count replies: %w", err)
	}
	return count, nil
}

// InteractionFilter narrows ListInteractions.
type InteractionFilter struct {
	Platform   string
	Sentiments []Sentiment
	Limit      int
}

// ListInteractions returns interactions newest first.
func (s *Store) ListInteractions(ctx context.Context, filter InteractionFilter) ([]*InteractionRecord, error) {
	builder := sqb.Select(interactionColumns...).From("interaction_records").OrderBy("id DESC")
	if filter.Platform != "" {
		builder = builder.Where(sq.Eq{"platform": filter.Platform})
	}
	if len(filter.Sentiments) > 0 {
		values := make([]string, len(filter.Sentiments))
		for i, v := range filter.Sentiments {
			values[i] = string(v)
		}
		builder = builder.Where(sq.Eq{"sentiment": values})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()
	var out []*InteractionRecord
	for rows.Next() {
		record, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func scanInteraction(row scanner) (*InteractionRecord, error) {
	var (
		r                                  InteractionRecord
		unitID                             sql.NullInt64
		author, text, response, responseID sql.NullString
		errorMsg, repliedAt                sql.NullString
		sentiment, replyStatus, createdRaw string
	)
	if err := row.Scan(
		&r.ID, &r.Platform, &unitID, &r.ExternalPostID, &r.ExternalCommentID, &author, &text,
		&sentiment, &replyStatus, &response, &responseID, &errorMsg, &repliedAt, &createdRaw,
	); err != nil {
		return nil, fmt.Errorf("scan interaction: %w", err)
	}
	r.UnitID = unitID.Int64
	r.Author = author.String
	r.Text = text.String
	r.Sentiment = Sentiment(sentiment)
	r.ReplyStatus = ReplyStatus(replyStatus)
	r.GeneratedResponse = response.String
	r.ResponseExternalID = responseID.String
	r.ErrorMessage = errorMsg.String
	if t := parseNullTime(repliedAt); !t.IsZero() {
		r.RepliedAt = &t
	}
	r.CreatedAt, _ = parseTime(createdRaw)
	return &r, nil
}
