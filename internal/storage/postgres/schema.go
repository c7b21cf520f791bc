package postgres

import (
	"context"
	"fmt"
)

// Tables names the tables used by the stores.
type Tables struct {
	Snapshots   string
	Tracking    string
	Subscribers string
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, pool Pool, tables Tables) error {
	snapshots, err := tableName(tables.Snapshots, defaultSnapshotTable)
	if err != nil {
		return err
	}
	tracking, err := tableName(tables.Tracking, defaultTrackingTable)
	if err != nil {
		return err
	}
	subscribers, err := tableName(tables.Subscribers, defaultSubscriberTable)
	if err != nil {
		return err
	}
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	category   TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	total      INTEGER NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS %s (
	category      TEXT PRIMARY KEY,
	latest_job_id TEXT NOT NULL,
	title         TEXT NOT NULL,
	board         TEXT NOT NULL,
	date          TEXT NOT NULL,
	last_checked  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL,
	interests     TEXT[] NOT NULL DEFAULT '{}',
	push_tokens   TEXT[] NOT NULL DEFAULT '{}',
	email_enabled BOOLEAN,
	push_enabled  BOOLEAN
);
CREATE INDEX IF NOT EXISTS %s_interests_idx ON %s USING GIN (interests);`,
		snapshots, tracking, subscribers, subscribers, subscribers)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}
