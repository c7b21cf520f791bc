package posting

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves a page body. Failures are returned wrapped in ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// SnapshotStore holds the latest full posting list per category.
type SnapshotStore interface {
	Replace(ctx context.Context, category string, postings []Posting) error
	Read(ctx context.Context, category string, offset, limit int) (Page, error)
	Exists(ctx context.Context, category string) (bool, error)
}

// TrackingStore persists one TrackingRecord per category.
type TrackingStore interface {
	Get(ctx context.Context, category string) (TrackingRecord, bool, error)
	Upsert(ctx context.Context, record TrackingRecord) error
}

// Directory resolves subscribers by category interest.
type Directory interface {
	FindByInterest(ctx context.Context, category string) ([]Subscriber, error)
}

// MailChannel delivers one email.
type MailChannel interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// PushChannel delivers push messages and manages topic membership.
type PushChannel interface {
	Send(ctx context.Context, tokens []string, n PushNotification, data map[string]string) (PushResult, error)
	SubscribeToTopic(ctx context.Context, tokens []string, topic string) (PushResult, error)
	UnsubscribeFromTopic(ctx context.Context, tokens []string, topic string) (PushResult, error)
}

// BlobStore writes archived artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher emits refresh events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces refresh and cycle IDs.
type IDGenerator interface {
	NewID() (string, error)
}
