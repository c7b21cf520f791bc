// Package redis stores tracking records as one hash per category.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// DefaultKeyPrefix namespaces tracking hashes.
const DefaultKeyPrefix = "jobalert:tracking:"

const (
	fieldIdentity    = "latest_job_id"
	fieldTitle       = "title"
	fieldBoard       = "board"
	fieldDate        = "date"
	fieldLastChecked = "last_checked"
)

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// TrackingStore implements posting.TrackingStore on redis hashes.
type TrackingStore struct {
	client goredis.Cmdable
	prefix string
}

// NewTrackingStore constructs a TrackingStore. An empty prefix uses
// DefaultKeyPrefix.
func NewTrackingStore(client goredis.Cmdable, prefix string) *TrackingStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &TrackingStore{client: client, prefix: prefix}
}

func (s *TrackingStore) key(category string) string {
	return s.prefix + category
}

// Get loads the record for category.
func (s *TrackingStore) Get(ctx context.Context, category string) (posting.TrackingRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(category)).Result()
	if err != nil {
		return posting.TrackingRecord{}, false, fmt.Errorf("hgetall tracking: %w", err)
	}
	if len(fields) == 0 {
		return posting.TrackingRecord{}, false, nil
	}
	rec := posting.TrackingRecord{
		Category:       category,
		LatestIdentity: fields[fieldIdentity],
		LatestTitle:    fields[fieldTitle],
		LatestBoard:    fields[fieldBoard],
		LatestDate:     fields[fieldDate],
	}
	if raw := fields[fieldLastChecked]; raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return posting.TrackingRecord{}, false, fmt.Errorf("parse last_checked: %w", err)
		}
		rec.LastCheckedAt = ts
	}
	return rec, true, nil
}

// Upsert writes every field of record in one HSET.
func (s *TrackingStore) Upsert(ctx context.Context, record posting.TrackingRecord) error {
	err := s.client.HSet(ctx, s.key(record.Category),
		fieldIdentity, record.LatestIdentity,
		fieldTitle, record.LatestTitle,
		fieldBoard, record.LatestBoard,
		fieldDate, record.LatestDate,
		fieldLastChecked, record.LastCheckedAt.UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("hset tracking: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *TrackingStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
