package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// TrackingStore keeps tracking records in a map.
type TrackingStore struct {
	mu      sync.RWMutex
	records map[string]posting.TrackingRecord
}

// NewTrackingStore constructs an empty TrackingStore.
func NewTrackingStore() *TrackingStore {
	return &TrackingStore{records: make(map[string]posting.TrackingRecord)}
}

// Get returns the record for category.
func (s *TrackingStore) Get(_ context.Context, category string) (posting.TrackingRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[category]
	return rec, ok, nil
}

// Upsert stores record under its category.
func (s *TrackingStore) Upsert(_ context.Context, record posting.TrackingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Category] = record
	return nil
}
