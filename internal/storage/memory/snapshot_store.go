package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// SnapshotStore keeps one immutable posting slice per category. Replace swaps
// the slice under the write lock, so a reader holds either the old or the new
// snapshot in full.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]posting.Posting
}

// NewSnapshotStore constructs an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string][]posting.Posting)}
}

// Replace discards the prior snapshot for category and stores postings.
func (s *SnapshotStore) Replace(_ context.Context, category string, postings []posting.Posting) error {
	snapshot := make([]posting.Posting, len(postings))
	copy(snapshot, postings)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[category] = snapshot
	return nil
}

// Read returns the [offset, offset+limit) window of the category snapshot.
func (s *SnapshotStore) Read(_ context.Context, category string, offset, limit int) (posting.Page, error) {
	s.mu.RLock()
	snapshot := s.snapshots[category]
	s.mu.RUnlock()
	return posting.Window(snapshot, offset, limit), nil
}

// Exists reports whether category has a snapshot.
func (s *SnapshotStore) Exists(_ context.Context, category string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[category]
	return ok, nil
}
