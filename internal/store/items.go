package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"reelcast/internal/services"
)

var itemColumns = []string{
	"id", "title", "body", "source_name", "source_kind", "source_trust", "canonical_url",
	"payload_json", "publish_date", "content_hash", "relevance_score", "category",
	"tags_json", "event", "entities_json", "created_at",
}

// InsertItem persists a new content item. An item whose content hash already
// exists is rejected with services.ErrDuplicate and leaves the stored row untouched.
func (s *Store) InsertItem(ctx context.Context, item *ContentItem) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if item.ContentHash == "" {
		return services.Wrap(services.ErrMalformedItem, "store", "insert item", "content hash required", nil)
	}
	payload, err := marshalOptional(item.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	tags, err := marshalList(item.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	entities, err := marshalList(item.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	item.CreatedAt = time.Now().UTC()

	res, err := s.execWithRetry(ctx,
		`INSERT INTO content_items (
            title, body, source_name, source_kind, source_trust, canonical_url, payload_json,
            publish_date, content_hash, relevance_score, category, tags_json, event, entities_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(content_hash) DO NOTHING`,
		item.Title,
		item.Body,
		item.Source.Name,
		item.Source.Kind,
		item.Source.TrustWeight,
		nullableString(item.CanonicalURL),
		payload,
		nullableTime(item.PublishDate),
		item.ContentHash,
		item.RelevanceScore,
		string(item.Category),
		tags,
		nullableString(item.Event),
		entities,
		formatTime(item.CreatedAt),
	)
	if err != nil {
		return writeErr("insert item", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return writeErr("insert item", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrDuplicate, "store", "insert item", "content hash "+item.ContentHash+" already stored", nil)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return writeErr("insert item", err)
	}
	item.ID = id
	return nil
}

// ExistingHashes returns the subset of hashes that are already stored.
func (s *Store) ExistingHashes(ctx context.Context, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return found, nil
	}
	rows, err := s.query(ctx, sqb.Select("content_hash").From("content_items").Where(sq.Eq{"content_hash": hashes}))
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		found[hash] = true
	}
	return found, rows.Err()
}

// GetItem fetches a content item by identifier. It returns nil when absent.
func (s *Store) GetItem(ctx context.Context, id int64) (*ContentItem, error) {
	rows, err := s.query(ctx, sqb.Select(itemColumns...).From("content_items").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanItem(rows)
}

// EligibleItems returns items scoring at least minScore that have never entered
// the pipeline, highest score first and newest first among equal scores.
func (s *Store) EligibleItems(ctx context.Context, minScore float64, limit int) ([]*ContentItem, error) {
	builder := sqb.Select(itemColumns...).
		From("content_items").
		Where(sq.GtOrEq{"relevance_score": minScore}).
		Where("NOT EXISTS (SELECT 1 FROM content_logs l WHERE l.item_id = content_items.id)").
		OrderBy("relevance_score DESC", "publish_date DESC", "id ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.listItems(ctx, builder)
}

// ListItems returns the most recently stored items.
func (s *Store) ListItems(ctx context.Context, limit int) ([]*ContentItem, error) {
	builder := sqb.Select(itemColumns...).From("content_items").OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	return s.listItems(ctx, builder)
}

func (s *Store) listItems(ctx context.Context, builder sq.SelectBuilder) ([]*ContentItem, error) {
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	var items []*ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row scanner) (*ContentItem, error) {
	var (
		item         ContentItem
		canonicalURL sql.NullString
		payload      sql.NullString
		publishDate  sql.NullString
		category     string
		tags         sql.NullString
		event        sql.NullString
		entities     sql.NullString
		createdRaw   string
	)
	if err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Body,
		&item.Source.Name,
		&item.Source.Kind,
		&item.Source.TrustWeight,
		&canonicalURL,
		&payload,
		&publishDate,
		&item.ContentHash,
		&item.RelevanceScore,
		&category,
		&tags,
		&event,
		&entities,
		&createdRaw,
	); err != nil {
		return nil, fmt.Errorf("scan item: %w", err)
	}
	item.CanonicalURL = canonicalURL.String
	item.Category = Category(category)
	item.Event = event.String
	item.PublishDate = parseNullTime(publishDate)
	if created, err := parseTime(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if payload.Valid && payload.String != "" {
		var p Payload
		if err := json.Unmarshal([]byte(payload.String), &p); err == nil {
			item.Payload = &p
		}
	}
	item.Tags = unmarshalList(tags)
	item.Entities = unmarshalList(entities)
	return &item, nil
}

func marshalOptional(value *Payload) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func marshalList(values []string) (any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalList(value sql.NullString) []string {
	if !value.Valid || value.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(value.String), &out); err != nil {
		return nil
	}
	return out
}
