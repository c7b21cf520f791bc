// Package tracker detects postings that appeared since the last observation of
// a category.
package tracker

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// Tracker compares fresh listings against the stored top posting per category.
type Tracker struct {
	store  posting.TrackingStore
	clock  posting.Clock
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Tracker over store.
func New(store posting.TrackingStore, clock posting.Clock, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:  store,
		clock:  clock,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// GetLatest returns the stored record for category, if any.
func (t *Tracker) GetLatest(ctx context.Context, category string) (posting.TrackingRecord, bool, error) {
	rec, ok, err := t.store.Get(ctx, category)
	if err != nil {
		return posting.TrackingRecord{}, false, fmt.Errorf("get tracking record: %w", err)
	}
	return rec, ok, nil
}

// Update records top as the latest posting of category.
func (t *Tracker) Update(ctx context.Context, category string, top posting.Posting) error {
	lock := t.lockFor(category)
	lock.Lock()
	defer lock.Unlock()
	return t.update(ctx, category, top)
}

// DetectNew returns the postings of fresh that are new since the last call.
//
// The first observation of a category only records fresh[0]. Later calls
// report nothing while the top identity is unchanged; otherwise every posting
// dated on or after the stored latest date is returned in input order. The
// date threshold may re-report same-day postings that were already seen.
func (t *Tracker) DetectNew(ctx context.Context, category string, fresh []posting.Posting) ([]posting.Posting, error) {
	if len(fresh) == 0 {
		return nil, nil
	}
	lock := t.lockFor(category)
	lock.Lock()
	defer lock.Unlock()

	rec, ok, err := t.store.Get(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("get tracking record: %w", err)
	}
	top := fresh[0]
	if !ok {
		t.logger.Info("tracking started", zap.String("category", category), zap.String("latest", top.Identity().String()))
		return nil, t.update(ctx, category, top)
	}

	if rec.LatestIdentity == top.Identity().String() {
		rec.LastCheckedAt = t.clock.Now()
		if err := t.store.Upsert(ctx, rec); err != nil {
			return nil, fmt.Errorf("touch tracking record: %w", err)
		}
		return nil, nil
	}

	var fresher []posting.Posting
	threshold, err := posting.ParseDate(rec.LatestDate)
	if err != nil {
		// No usable threshold: only the new top is known to be new.
		fresher = []posting.Posting{top}
	} else {
		for _, p := range fresh {
			d, err := posting.ParseDate(p.PostDate)
			if err != nil {
				continue
			}
			if !d.Before(threshold) {
				fresher = append(fresher, p)
			}
		}
	}

	if err := t.update(ctx, category, top); err != nil {
		return nil, err
	}
	t.logger.Info("new postings detected",
		zap.String("category", category),
		zap.Int("count", len(fresher)),
		zap.String("latest", top.Identity().String()),
	)
	return fresher, nil
}

func (t *Tracker) update(ctx context.Context, category string, top posting.Posting) error {
	rec := posting.NewTrackingRecord(category, top, t.clock.Now())
	if err := t.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("upsert tracking record: %w", err)
	}
	return nil
}

func (t *Tracker) lockFor(category string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[category]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[category] = lock
	}
	return lock
}
