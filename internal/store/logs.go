package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var logColumns = []string{
	"id", "item_id", "narrative_id", "synthesis_id", "render_id", "metadata_id", "status",
	"error_kind", "error_message", "processing_ms", "run_id", "created_at", "updated_at",
}

var stageColumns = map[StageName]string{
	StageNarrative: "narrative_id",
	StageSynthesis: "synthesis_id",
	StageRender:    "render_id",
	StageMetadata:  "metadata_id",
}

// CreateLog opens the processing ContentLog for an item. An item can have only one log.
func (s *Store) CreateLog(ctx context.Context, itemID int64, runID string) (*ContentLog, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO content_logs (item_id, status, run_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		itemID, string(LogProcessing), nullableString(runID), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, writeErr("create log", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, writeErr("create log", err)
	}
	return &ContentLog{
		ID:          id,
		ItemID:      itemID,
		ArtifactIDs: map[StageName]int64{},
		Status:      LogProcessing,
		RunID:       runID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RecordStage attaches a stage artifact to a processing log and adds the stage
// duration to the cumulative processing time.
func (s *Store) RecordStage(ctx context.Context, log *ContentLog, stage StageName, artifactID int64, elapsed time.Duration) error {
	column, ok := stageColumns[stage]
	if !ok {
		return fmt.Errorf("record stage: unknown stage %q", stage)
	}
	now := time.Now().UTC()
	total := log.ProcessingTime + elapsed
	if err := s.transitionLog(ctx, "record stage",
		`UPDATE content_logs SET `+column+` = ?, processing_ms = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableID(artifactID), total.Milliseconds(), formatTime(now), log.ID, string(LogProcessing),
	); err != nil {
		return err
	}
	if log.ArtifactIDs == nil {
		log.ArtifactIDs = map[StageName]int64{}
	}
	if artifactID != 0 {
		log.ArtifactIDs[stage] = artifactID
	}
	log.ProcessingTime = total
	log.UpdatedAt = now
	return nil
}

// CompleteLog transitions a processing log to completed.
func (s *Store) CompleteLog(ctx context.Context, log *ContentLog) error {
	now := time.Now().UTC()
	if err := s.transitionLog(ctx, "complete log",
		`UPDATE content_logs SET status = ?, processing_ms = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(LogCompleted), log.ProcessingTime.Milliseconds(), formatTime(now), log.ID, string(LogProcessing),
	); err != nil {
		return err
	}
	log.Status = LogCompleted
	log.UpdatedAt = now
	return nil
}

// FailLog transitions a processing log to failed with a classified error.
func (s *Store) FailLog(ctx context.Context, log *ContentLog, kind, message string) error {
	now := time.Now().UTC()
	if err := s.transitionLog(ctx, "fail log",
		`UPDATE content_logs SET status = ?, error_kind = ?, error_message = ?, processing_ms = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(LogFailed), nullableString(kind), nullableString(message), log.ProcessingTime.Milliseconds(),
		formatTime(now), log.ID, string(LogProcessing),
	); err != nil {
		return err
	}
	log.Status = LogFailed
	log.ErrorKind = kind
	log.ErrorMessage = message
	log.UpdatedAt = now
	return nil
}

func (s *Store) transitionLog(ctx context.Context, operation, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return writeErr(operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr(operation, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w: log is not processing", operation, ErrInvalidTransition)
	}
	return nil
}

// FailInterrupted fails every log still marked processing. The daemon calls it
// at startup so a crash mid-stage never leaves an ambiguous log behind.
func (s *Store) FailInterrupted(ctx context.Context, message string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE content_logs SET status = ?, error_kind = ?, error_message = ?, updated_at = ? WHERE status = ?`,
		string(LogFailed), "interrupted", message, formatTime(time.Now()), string(LogProcessing),
	)
	if err != nil {
		return 0, writeErr("fail interrupted logs", err)
	}
	return res.RowsAffected()
}

// DeleteTerminalLog removes a completed or failed log so its item becomes eligible again.
func (s *Store) DeleteTerminalLog(ctx context.Context, itemID int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM content_logs WHERE item_id = ? AND status IN (?, ?)`,
		itemID, string(LogCompleted), string(LogFailed),
	)
	if err != nil {
		return false, writeErr("delete log", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, writeErr("delete log", err)
	}
	return affected > 0, nil
}

// GetLog fetches a log by identifier. It returns nil when absent.
func (s *Store) GetLog(ctx context.Context, id int64) (*ContentLog, error) {
	logs, err := s.listLogs(ctx, sqb.Select(logColumns...).From("content_logs").Where(sq.Eq{"id": id}))
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return logs[0], nil
}

// LogForItem fetches the log for an item. It returns nil when absent.
func (s *Store) LogForItem(ctx context.Context, itemID int64) (*ContentLog, error) {
	logs, err := s.listLogs(ctx, sqb.Select(logColumns...).From("content_logs").Where(sq.Eq{"item_id": itemID}))
	if err != nil || len(logs) == 0 {
		return nil, err
	}
	return logs[0], nil
}

// LogFilter narrows ListLogs.
type LogFilter struct {
	Statuses []LogStatus
	RunID    string
	Limit    int
}

// ListLogs returns logs newest first.
func (s *Store) ListLogs(ctx context.Context, filter LogFilter) ([]*ContentLog, error) {
	builder := sqb.Select(logColumns...).From("content_logs").OrderBy("id DESC")
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.RunID != "" {
		builder = builder.Where(sq.Eq{"run_id": filter.RunID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return s.listLogs(ctx, builder)
}

func (s *Store) listLogs(ctx context.Context, builder sq.SelectBuilder) ([]*ContentLog, error) {
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()
	var out []*ContentLog
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

func scanLog(row scanner) (*ContentLog, error) {
	var (
		l                                  ContentLog
		narrative, synthesis, render, meta sql.NullInt64
		status                             string
		errorKind, errorMsg, runID         sql.NullString
		processingMS                       int64
		createdRaw, updatedRaw             string
	)
	if err := row.Scan(
		&l.ID, &l.ItemID, &narrative, &synthesis, &render, &meta, &status,
		&errorKind, &errorMsg, &processingMS, &runID, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}
	l.ArtifactIDs = map[StageName]int64{}
	for stage, value := range map[StageName]sql.NullInt64{
		StageNarrative: narrative,
		StageSynthesis: synthesis,
		StageRender:    render,
		StageMetadata:  meta,
	} {
		if value.Valid {
			l.ArtifactIDs[stage] = value.Int64
		}
	}
	l.Status = LogStatus(status)
	l.ErrorKind = errorKind.String
	l.ErrorMessage = errorMsg.String
	l.RunID = runID.String
	l.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	l.CreatedAt, _ = parseTime(createdRaw)
	l.UpdatedAt, _ = parseTime(updatedRaw)
	return &l, nil
}
