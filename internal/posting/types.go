package posting

import (
	"fmt"
	"strings"
	"time"
)

// Shape identifies the layout of a source listing page.
type Shape string

const (
	// ShapeTopic is a single listing table with a header row.
	ShapeTopic Shape = "topic"
	// ShapeSectioned is a sequence of tables, each under a section heading.
	ShapeSectioned Shape = "sectioned"
	// ShapeEducation is the education listing with its own detail schema.
	ShapeEducation Shape = "education"
)

// ParseShape validates a configured shape name.
func ParseShape(s string) (Shape, error) {
	switch shape := Shape(strings.ToLower(strings.TrimSpace(s))); shape {
	case ShapeTopic, ShapeSectioned, ShapeEducation:
		return shape, nil
	default:
		return "", fmt.Errorf("unknown source shape %q", s)
	}
}

// Posting is one listing entry normalized from a source page.
type Posting struct {
	PostDate        string            `json:"postDate"`
	PostBoard       string            `json:"postBoard"`
	PostName        string            `json:"postName"`
	Qualification   string            `json:"qualification"`
	AdvtNo          string            `json:"advtNo"`
	LastDate        string            `json:"lastDate"`
	Deadline        *time.Time        `json:"deadline"`
	Link            string            `json:"link"`
	ApplyOnline     string            `json:"applyOnline"`
	Notification    string            `json:"notification"`
	OfficialWebsite string            `json:"officialWebsite"`
	Section         string            `json:"section,omitempty"`
	Education       *EducationDetails `json:"education,omitempty"`
}

// Identity is the composite key used for deduplication and change detection.
type Identity struct {
	Board  string
	Name   string
	AdvtNo string
}

// String renders the identity in its persisted form.
func (i Identity) String() string {
	return i.Board + "-" + i.Name + "-" + i.AdvtNo
}

// Identity returns the posting's composite key.
func (p Posting) Identity() Identity {
	return Identity{Board: p.PostBoard, Name: p.PostName, AdvtNo: p.AdvtNo}
}

// Link is a labeled href from an education detail page.
type Link struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// EducationDetails carries the supplementary fields of the education shape.
type EducationDetails struct {
	ApplicationFee []string `json:"applicationFee"`
	ImportantDates []string `json:"importantDates"`
	AgeLimit       []string `json:"ageLimit"`
	Qualification  []string `json:"qualification"`
	ImportantLinks []Link   `json:"importantLinks"`
}

// Page is a paginated view over a category snapshot.
type Page struct {
	Total int       `json:"total"`
	Data  []Posting `json:"data"`
}

// TrackingRecord remembers the top posting last seen for a category.
type TrackingRecord struct {
	Category       string    `json:"category"`
	LatestIdentity string    `json:"latestIdentity"`
	LatestTitle    string    `json:"latestTitle"`
	LatestBoard    string    `json:"latestBoard"`
	LatestDate     string    `json:"latestDate"`
	LastCheckedAt  time.Time `json:"lastCheckedAt"`
}

// NewTrackingRecord builds the record for category from its top posting.
func NewTrackingRecord(category string, top Posting, now time.Time) TrackingRecord {
	return TrackingRecord{
		Category:       category,
		LatestIdentity: top.Identity().String(),
		LatestTitle:    top.PostName,
		LatestBoard:    top.PostBoard,
		LatestDate:     top.PostDate,
		LastCheckedAt:  now,
	}
}

// NotificationSettings holds per-channel opt-outs. A nil value means the
// subscriber never set it, which counts as enabled.
type NotificationSettings struct {
	Email *bool `json:"email,omitempty"`
	Push  *bool `json:"push,omitempty"`
}

// EmailEnabled reports whether email delivery is allowed.
func (s NotificationSettings) EmailEnabled() bool {
	return s.Email == nil || *s.Email
}

// PushEnabled reports whether push delivery is allowed.
func (s NotificationSettings) PushEnabled() bool {
	return s.Push == nil || *s.Push
}

// Subscriber is a read-only view of a user as seen by the notifier.
type Subscriber struct {
	ID         string               `json:"id"`
	Email      string               `json:"email"`
	Interests  []string             `json:"interests"`
	PushTokens []string             `json:"pushTokens"`
	Settings   NotificationSettings `json:"notificationSettings"`
}

// Source binds a category to the page that feeds it.
type Source struct {
	Category string `json:"category"`
	URL      string `json:"url"`
	Shape    Shape  `json:"shape"`
}

// PushNotification is the visible part of a push message.
type PushNotification struct {
	Title    string
	Body     string
	ImageURL string
}

// PushResult reports per-token delivery counts.
type PushResult struct {
	SuccessCount int
	FailureCount int
}
