package store

import (
	"context"
	"fmt"
)

// Stats aggregates row counts for the status surface.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Logs: map[LogStatus]int{}, Units: map[UnitStatus]int{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM content_items").Scan(&stats.Items); err != nil {
		return stats, fmt.Errorf("count items: %w", err)
	}
	if err := s.groupCount(ctx, "content_logs", func(status string, n int) { stats.Logs[LogStatus(status)] = n }); err != nil {
		return stats, err
	}
	if err := s.groupCount(ctx, "scheduled_units", func(status string, n int) { stats.Units[UnitStatus(status)] = n }); err != nil {
		return stats, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(CASE WHEN reply_status = ? THEN 1 ELSE 0 END), 0) FROM interaction_records",
		string(ReplySent),
	).Scan(&stats.Interactions, &stats.Replies); err != nil {
		return stats, fmt.Errorf("count interactions: %w", err)
	}
	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, table string, fn func(string, int)) error {
	rows, err := s.query(ctx, sqb.Select("status", "COUNT(1)").From(table).GroupBy("status"))
	if err != nil {
		return fmt.Errorf("count %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return fmt.Errorf("scan %s count: %w", table, err)
		}
		fn(status, count)
	}
	return rows.Err()
}
