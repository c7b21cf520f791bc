package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if fetchTotal == nil || refreshTotal == nil || notificationsTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	ObserveFetch("https://observe.test/railway-jobs/", "ok", 512)
	if val := testutil.ToFloat64(fetchTotal.WithLabelValues("observe.test", "ok")); val != 1 {
		t.Errorf("expected one fetch, got %f", val)
	}
	if val := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("observe.test")); val != 512 {
		t.Errorf("expected 512 bytes, got %f", val)
	}

	ObserveRefresh("observe-cat", "success", time.Second)
	if val := testutil.ToFloat64(refreshTotal.WithLabelValues("observe-cat", "success")); val != 1 {
		t.Errorf("expected one refresh, got %f", val)
	}

	ObserveNewPostings("observe-cat", 0)
	ObserveNewPostings("observe-cat", 3)
	if val := testutil.ToFloat64(newPostingsTotal.WithLabelValues("observe-cat")); val != 3 {
		t.Errorf("expected 3 new postings, got %f", val)
	}

	ObserveNotification("observe-channel", "failure")
	if val := testutil.ToFloat64(notificationsTotal.WithLabelValues("observe-channel", "failure")); val != 1 {
		t.Errorf("expected one notification, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
