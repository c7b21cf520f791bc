package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const defaultTrackingTable = "job_tracking"

// TrackingStore persists tracking records in the job_tracking table.
type TrackingStore struct {
	pool  Pool
	table string
}

// NewTrackingStore constructs a TrackingStore over pool.
func NewTrackingStore(pool Pool, table string) (*TrackingStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultTrackingTable)
	if err != nil {
		return nil, err
	}
	return &TrackingStore{pool: pool, table: table}, nil
}

// Get loads the record for category.
func (s *TrackingStore) Get(ctx context.Context, category string) (posting.TrackingRecord, bool, error) {
	query := fmt.Sprintf(`
SELECT latest_job_id, title, board, date, last_checked
FROM %s
WHERE category = $1`, s.table)

	rec := posting.TrackingRecord{Category: category}
	err := s.pool.QueryRow(ctx, query, category).Scan(
		&rec.LatestIdentity,
		&rec.LatestTitle,
		&rec.LatestBoard,
		&rec.LatestDate,
		&rec.LastCheckedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return posting.TrackingRecord{}, false, nil
	}
	if err != nil {
		return posting.TrackingRecord{}, false, fmt.Errorf("select tracking record: %w", err)
	}
	return rec, true, nil
}

// Upsert inserts or replaces the record for its category.
func (s *TrackingStore) Upsert(ctx context.Context, record posting.TrackingRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (category, latest_job_id, title, board, date, last_checked)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (category) DO UPDATE SET
	latest_job_id = EXCLUDED.latest_job_id,
	title = EXCLUDED.title,
	board = EXCLUDED.board,
	date = EXCLUDED.date,
	last_checked = EXCLUDED.last_checked`, s.table)

	_, err := s.pool.Exec(ctx, query,
		record.Category,
		record.LatestIdentity,
		record.LatestTitle,
		record.LatestBoard,
		record.LatestDate,
		record.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}
