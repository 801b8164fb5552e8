package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var artifactColumns = []string{
	"id", "item_id", "stage", "parent_id", "payload_ref", "data", "duration_seconds",
	"size_bytes", "status", "error_kind", "error_message", "created_at", "updated_at",
}

// CreateArtifact inserts a new artifact in the processing state.
func (s *Store) CreateArtifact(ctx context.Context, itemID int64, stage StageName, parentID int64) (*StageArtifact, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO stage_artifacts (item_id, stage, parent_id, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		itemID, string(stage), nullableID(parentID), string(ArtifactProcessing), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, writeErr("create artifact", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, writeErr("create artifact", err)
	}
	return &StageArtifact{
		ID:        id,
		ItemID:    itemID,
		Stage:     stage,
		ParentID:  parentID,
		Status:    ArtifactProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CompleteArtifact records the artifact's output and marks it completed.
func (s *Store) CompleteArtifact(ctx context.Context, artifact *StageArtifact) error {
	if artifact == nil {
		return errors.New("artifact is nil")
	}
	now := time.Now().UTC()
	if err := s.finishArtifact(ctx,
		`UPDATE stage_artifacts
         SET payload_ref = ?, data = ?, duration_seconds = ?, size_bytes = ?, status = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		"complete artifact",
		nullableString(artifact.PayloadRef),
		nullableString(artifact.Data),
		artifact.DurationSeconds,
		artifact.SizeBytes,
		string(ArtifactCompleted),
		formatTime(now),
		artifact.ID,
		string(ArtifactPending),
		string(ArtifactProcessing),
	); err != nil {
		return err
	}
	artifact.Status = ArtifactCompleted
	artifact.UpdatedAt = now
	return nil
}

// FailArtifact marks the artifact failed with a classified error.
func (s *Store) FailArtifact(ctx context.Context, artifact *StageArtifact, kind, message string) error {
	if artifact == nil {
		return errors.New("artifact is nil")
	}
	now := time.Now().UTC()
	if err := s.finishArtifact(ctx,
		`UPDATE stage_artifacts
         SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		"fail artifact",
		string(ArtifactFailed),
		nullableString(kind),
		nullableString(message),
		formatTime(now),
		artifact.ID,
		string(ArtifactPending),
		string(ArtifactProcessing),
	); err != nil {
		return err
	}
	artifact.Status = ArtifactFailed
	artifact.ErrorKind = kind
	artifact.ErrorMessage = message
	artifact.UpdatedAt = now
	return nil
}

func (s *Store) finishArtifact(ctx context.Context, query, operation string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return writeErr(operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr(operation, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w: artifact is already terminal", operation, ErrInvalidTransition)
	}
	return nil
}

// GetArtifact fetches an artifact by identifier. It returns nil when absent.
func (s *Store) GetArtifact(ctx context.Context, id int64) (*StageArtifact, error) {
	rows, err := s.query(ctx, sqb.Select(artifactColumns...).From("stage_artifacts").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanArtifact(rows)
}

// ArtifactsForItem lists every artifact attempt for an item in creation order.
func (s *Store) ArtifactsForItem(ctx context.Context, itemID int64) ([]*StageArtifact, error) {
	rows, err := s.query(ctx, sqb.Select(artifactColumns...).From("stage_artifacts").Where(sq.Eq{"item_id": itemID}).OrderBy("id ASC"))
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()
	var out []*StageArtifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, artifact)
	}
	return out, rows.Err()
}

func scanArtifact(row scanner) (*StageArtifact, error) {
	var (
		a          StageArtifact
		stage      string
		parentID   sql.NullInt64
		payloadRef sql.NullString
		data       sql.NullString
		status     string
		errorKind  sql.NullString
		errorMsg   sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(
		&a.ID, &a.ItemID, &stage, &parentID, &payloadRef, &data, &a.DurationSeconds,
		&a.SizeBytes, &status, &errorKind, &errorMsg, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	a.Stage = StageName(stage)
	a.ParentID = parentID.Int64
	a.PayloadRef = payloadRef.String
	a.Data = data.String
	a.Status = ArtifactStatus(status)
	a.ErrorKind = errorKind.String
	a.ErrorMessage = errorMsg.String
	a.CreatedAt, _ = parseTime(createdRaw)
	a.UpdatedAt, _ = parseTime(updatedRaw)
	return &a, nil
}
