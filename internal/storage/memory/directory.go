package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// Directory is a static subscriber list.
type Directory struct {
	mu          sync.RWMutex
	subscribers []posting.Subscriber
}

// NewDirectory constructs a Directory seeded with subscribers.
func NewDirectory(subscribers ...posting.Subscriber) *Directory {
	return &Directory{subscribers: slices.Clone(subscribers)}
}

// Add registers a subscriber.
func (d *Directory) Add(s posting.Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, s)
}

// FindByInterest returns subscribers interested in category.
func (d *Directory) FindByInterest(_ context.Context, category string) ([]posting.Subscriber, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []posting.Subscriber
	for _, s := range d.subscribers {
		if slices.Contains(s.Interests, category) {
			out = append(out, s)
		}
	}
	return out, nil
}
