package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const defaultSnapshotTable = "snapshots"

// SnapshotStore keeps each category snapshot as one JSONB document.
type SnapshotStore struct {
	pool  Pool
	table string
	locks keyedMutex
}

// NewSnapshotStore constructs a SnapshotStore over pool.
func NewSnapshotStore(pool Pool, table string) (*SnapshotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table, defaultSnapshotTable)
	if err != nil {
		return nil, err
	}
	return &SnapshotStore{pool: pool, table: table}, nil
}

// Replace swaps the category snapshot inside one transaction. Writers for the
// same category are serialized in-process and, through a transaction-scoped
// advisory lock, across replicas.
func (s *SnapshotStore) Replace(ctx context.Context, category string, postings []posting.Posting) error {
	if postings == nil {
		postings = []posting.Posting{}
	}
	data, err := json.Marshal(postings)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	lock := s.locks.get(category)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	if err := s.replaceTx(ctx, tx, category, data, len(postings)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

func (s *SnapshotStore) replaceTx(ctx context.Context, tx pgx.Tx, category string, data []byte, total int) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, category); err != nil {
		return fmt.Errorf("lock snapshot: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE category = $1`, s.table), category); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (category, data, total, updated_at) VALUES ($1, $2, $3, NOW())`, s.table)
	if _, err := tx.Exec(ctx, query, category, data, total); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Read returns a window of the category snapshot.
func (s *SnapshotStore) Read(ctx context.Context, category string, offset, limit int) (posting.Page, error) {
	var data []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE category = $1`, s.table)
	if err := s.pool.QueryRow(ctx, query, category).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return posting.Window(nil, offset, limit), nil
		}
		return posting.Page{}, fmt.Errorf("select snapshot: %w", err)
	}
	var snapshot []posting.Posting
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return posting.Page{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return posting.Window(snapshot, offset, limit), nil
}

// Exists reports whether category has a snapshot row.
func (s *SnapshotStore) Exists(ctx context.Context, category string) (bool, error) {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE category = $1)`, s.table)
	if err := s.pool.QueryRow(ctx, query, category).Scan(&exists); err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return exists, nil
}

// Ping verifies the database is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
