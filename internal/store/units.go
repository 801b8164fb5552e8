package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"reelcast/internal/services"
)

var unitColumns = []string{
	"id", "item_id", "render_artifact_id", "metadata_artifact_id", "platform", "scheduled_time",
	"status", "payload_url", "metadata_json", "external_id", "published_url", "error_kind",
	"error_message", "requeued_from", "published_at", "created_at", "updated_at",
}

// CreateUnits persists a fan-out of scheduled units atomically. A unit that
// would share a platform slot with another scheduled unit is rejected.
func (s *Store) CreateUnits(ctx context.Context, units []*ScheduledUnit) error {
	if len(units) == 0 {
		return nil
	}
	now := time.Now().UTC()
	ids := make([]int64, len(units))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for i, unit := range units {
			metadata, err := json.Marshal(unit.Metadata)
			if err != nil {
				return fmt.Errorf("marshal unit metadata: %w", err)
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO scheduled_units (
                    item_id, render_artifact_id, metadata_artifact_id, platform, scheduled_time, status,
                    payload_url, metadata_json, requeued_from, created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				unit.ItemID,
				unit.RenderArtifactID,
				nullableID(unit.MetadataArtifactID),
				unit.Platform,
				formatTime(unit.ScheduledTime),
				string(UnitScheduled),
				nullableString(unit.PayloadURL),
				string(metadata),
				nullableID(unit.RequeuedFrom),
				formatTime(now),
				formatTime(now),
			)
			if err != nil {
				return err
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return services.Wrap(services.ErrValidation, "store", "create units", "slot already occupied", err)
		}
		return writeErr("create units", err)
	}
	for i, unit := range units {
		unit.ID = ids[i]
		unit.Status = UnitScheduled
		unit.CreatedAt = now
		unit.UpdatedAt = now
	}
	return nil
}

// OccupiedSlots returns the scheduled times in [from, to) that already hold a scheduled unit.
func (s *Store) OccupiedSlots(ctx context.Context, from, to time.Time) (map[time.Time]bool, error) {
	rows, err := s.query(ctx, sqb.Select("DISTINCT scheduled_time").
		From("scheduled_units").
		Where(sq.Eq{"status": string(UnitScheduled)}).
		Where(sq.GtOrEq{"scheduled_time": formatTime(from)}).
		Where(sq.Lt{"scheduled_time": formatTime(to)}))
	if err != nil {
		return nil, fmt.Errorf("query occupied slots: %w", err)
	}
	defer rows.Close()
	occupied := make(map[time.Time]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		if t, err := parseTime(raw); err == nil {
			occupied[t.UTC()] = true
		}
	}
	return occupied, rows.Err()
}

// DueUnits returns scheduled units whose time has elapsed, oldest first.
func (s *Store) DueUnits(ctx context.Context, now time.Time, limit int) ([]*ScheduledUnit, error) {
	builder := sqb.Select(unitColumns...).
		From("scheduled_units").
		Where(sq.Eq{"status": string(UnitScheduled)}).
		Where(sq.LtOrEq{"scheduled_time": formatTime(now)}).
		OrderBy("scheduled_time ASC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.listUnits(ctx, builder)
}

// MarkPublished transitions a scheduled unit to published.
func (s *Store) MarkPublished(ctx context.Context, unit *ScheduledUnit, externalID, url string) error {
	now := time.Now().UTC()
	if err := s.transitionUnit(ctx, "mark published",
		`UPDATE scheduled_units SET status = ?, external_id = ?, published_url = ?, published_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(UnitPublished), nullableString(externalID), nullableString(url), formatTime(now), formatTime(now),
		unit.ID, string(UnitScheduled),
	); err != nil {
		return err
	}
	unit.Status = UnitPublished
	unit.ExternalID = externalID
	unit.PublishedURL = url
	unit.PublishedAt = &now
	unit.UpdatedAt = now
	return nil
}

// MarkUnitFailed transitions a scheduled unit to failed. Failed units are never retried automatically.
func (s *Store) MarkUnitFailed(ctx context.Context, unit *ScheduledUnit, kind, message string) error {
	now := time.Now().UTC()
	if err := s.transitionUnit(ctx, "mark unit failed",
		`UPDATE scheduled_units SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(UnitFailed), nullableString(kind), nullableString(message), formatTime(now),
		unit.ID, string(UnitScheduled),
	); err != nil {
		return err
	}
	unit.Status = UnitFailed
	unit.ErrorKind = kind
	unit.ErrorMessage = message
	unit.UpdatedAt = now
	return nil
}

func (s *Store) transitionUnit(ctx context.Context, operation, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return writeErr(operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr(operation, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w: unit is not scheduled", operation, ErrInvalidTransition)
	}
	return nil
}

// GetUnit fetches a unit by identifier. It returns nil when absent.
func (s *Store) GetUnit(ctx context.Context, id int64) (*ScheduledUnit, error) {
	units, err := s.listUnits(ctx, sqb.Select(unitColumns...).From("scheduled_units").Where(sq.Eq{"id": id}))
	if err != nil || len(units) == 0 {
		return nil, err
	}
	return units[0], nil
}

// UnitFilter narrows ListUnits.
type UnitFilter struct {
	Statuses        []UnitStatus
	Platform        string
	PublishedSince  time.Time
	RenderArtifacts []int64
	Limit           int
}

// ListUnits returns units ordered by scheduled time, latest first.
func (s *Store) ListUnits(ctx context.Context, filter UnitFilter) ([]*ScheduledUnit, error) {
	builder := sqb.Select(unitColumns...).From("scheduled_units").OrderBy("scheduled_time DESC", "id DESC")
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.Platform != "" {
		builder = builder.Where(sq.Eq{"platform": filter.Platform})
	}
	if !filter.PublishedSince.IsZero() {
		builder = builder.Where(sq.GtOrEq{"published_at": formatTime(filter.PublishedSince)})
	}
	if len(filter.RenderArtifacts) > 0 {
		builder = builder.Where(sq.Eq{"render_artifact_id": filter.RenderArtifacts})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	return s.listUnits(ctx, builder)
}

func (s *Store) listUnits(ctx context.Context, builder sq.SelectBuilder) ([]*ScheduledUnit, error) {
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()
	var out []*ScheduledUnit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, unit)
	}
	return out, rows.Err()
}

func scanUnit(row scanner) (*ScheduledUnit, error) {
	var (
		u                                 ScheduledUnit
		metadataArtifact, requeuedFrom    sql.NullInt64
		scheduledRaw, status              string
		payloadURL, metadata, externalID  sql.NullString
		publishedURL, errorKind, errorMsg sql.NullString
		publishedAt                       sql.NullString
		createdRaw, updatedRaw            string
	)
	if err := row.Scan(
		&u.ID, &u.ItemID, &u.RenderArtifactID, &metadataArtifact, &u.Platform, &scheduledRaw,
		&status, &payloadURL, &metadata, &externalID, &publishedURL, &errorKind,
		&errorMsg, &requeuedFrom, &publishedAt, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, fmt.Errorf("scan unit: %w", err)
	}
	u.MetadataArtifactID = metadataArtifact.Int64
	u.RequeuedFrom = requeuedFrom.Int64
	u.Status = UnitStatus(status)
	u.PayloadURL = payloadURL.String
	u.ExternalID = externalID.String
	u.PublishedURL = publishedURL.String
	u.ErrorKind = errorKind.String
	u.ErrorMessage = errorMsg.String
	u.ScheduledTime, _ = parseTime(scheduledRaw)
	u.CreatedAt, _ = parseTime(createdRaw)
	u.UpdatedAt, _ = parseTime(updatedRaw)
	if t := parseNullTime(publishedAt); !t.IsZero() {
		u.PublishedAt = &t
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &u.Metadata); err != nil {
			return nil, errors.Join(fmt.Errorf("decode unit %d metadata", u.ID), err)
		}
	}
	return &u, nil
}
