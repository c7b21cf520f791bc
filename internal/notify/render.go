package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const (
	maxPushTitle = 100
	maxPushBody  = 500
	maxPushJobs  = 3
	notAvailable = "N/A"

	// MaxPushPayload is the FCM limit on a message's notification and data
	// content, in bytes.
	MaxPushPayload = 4096
)

// pushJob is the summary of a posting carried in a push data payload.
type pushJob struct {
	PostDate    string `json:"postDate"`
	PostBoard   string `json:"postBoard"`
	PostName    string `json:"postName"`
	LastDate    string `json:"lastDate"`
	Link        string `json:"link"`
	ApplyOnline string `json:"applyOnline,omitempty"`
}

// Subject is the email subject and push title for category.
func Subject(category string) string {
	return "New Jobs in " + category
}

// RenderEmail renders postings as the markdown body of a notification email.
// The output depends only on its inputs.
func RenderEmail(category string, postings []posting.Posting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# New Jobs Available in %s\n", category)
	for _, p := range postings {
		fmt.Fprintf(&b, "\n## %s\n", p.PostName)
		fmt.Fprintf(&b, "- **Board:** %s\n", p.PostBoard)
		fmt.Fprintf(&b, "- **Posted:** %s\n", p.PostDate)
		fmt.Fprintf(&b, "- **Last Date:** %s\n", p.LastDate)
		fmt.Fprintf(&b, "- **Qualification:** %s\n", p.Qualification)
		fmt.Fprintf(&b, "- **Apply Online:** %s\n", orNA(p.ApplyOnline))
		fmt.Fprintf(&b, "- **Details:** %s\n", orNA(p.Link))
	}
	fmt.Fprintf(&b, "\n---\n*You're receiving this because you subscribed to %s job notifications.*\n", category)
	return b.String()
}

// RenderHTML converts a markdown email body to HTML. Raw HTML in the input is
// not passed through.
func RenderHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render email html: %w", err)
	}
	return buf.String(), nil
}

// PushMessage builds the visible notification and data payload for a push
// about postings in category. The data carries a summary of up to three
// postings, fewer when needed to keep the message within MaxPushPayload.
func PushMessage(category string, postings []posting.Posting, imageURL string, now time.Time) (posting.PushNotification, map[string]string, error) {
	n := len(postings)
	plural := ""
	if n > 1 {
		plural = "s"
	}
	notification := posting.PushNotification{
		Title:    truncate(Subject(category), maxPushTitle),
		Body:     truncate(fmt.Sprintf("%d new job%s available in %s", n, plural, category), maxPushBody),
		ImageURL: imageURL,
	}

	data := map[string]string{
		"category":  category,
		"jobCount":  strconv.Itoa(n),
		"type":      "job_notification",
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	summaries := make([]pushJob, 0, min(n, maxPushJobs))
	for _, p := range postings[:min(n, maxPushJobs)] {
		summaries = append(summaries, pushJob{
			PostDate:    p.PostDate,
			PostBoard:   p.PostBoard,
			PostName:    p.PostName,
			LastDate:    p.LastDate,
			Link:        p.Link,
			ApplyOnline: p.ApplyOnline,
		})
	}
	for {
		jobs, err := json.Marshal(summaries)
		if err != nil {
			return posting.PushNotification{}, nil, fmt.Errorf("marshal push jobs: %w", err)
		}
		data["jobs"] = string(jobs)
		if len(summaries) == 0 || PayloadSize(notification, data) <= MaxPushPayload {
			return notification, data, nil
		}
		summaries = summaries[:len(summaries)-1]
	}
}

// PayloadSize approximates the bytes FCM counts against MaxPushPayload: the
// visible title and body plus every data key and value.
func PayloadSize(n posting.PushNotification, data map[string]string) int {
	size := len(n.Title) + len(n.Body) + len(n.ImageURL)
	for k, v := range data {
		size += len(k) + len(v)
	}
	return size
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// redact keeps enough of an address to correlate logs without exposing it.
func redact(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
