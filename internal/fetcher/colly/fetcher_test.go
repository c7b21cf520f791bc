package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/metrics"
	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

func init() {
	metrics.Init()
}

func TestRetrieverFetchReturnsBody(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	t.Cleanup(srv.Close)

	r := New(Config{Timeout: time.Second}, nil, zap.NewNop())
	body, err := r.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, string(body), "ok")
	require.Equal(t, r.UserAgent(), gotUA.Load())
	require.True(t, slices.Contains(DefaultUserAgents, r.UserAgent()))
}

func TestRetrieverRevisitsSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("page"))
	}))
	t.Cleanup(srv.Close)

	r := New(Config{Timeout: time.Second}, nil, nil)
	for range 3 {
		_, err := r.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	require.Equal(t, int32(3), hits.Load())
}

func TestRetrieverNon2xxIsFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	r := New(Config{Timeout: time.Second}, nil, nil)
	_, err := r.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, posting.ErrFetch))
}

func TestRetrieverTimeoutIsFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("late"))
	}))
	t.Cleanup(srv.Close)

	r := New(Config{Timeout: 100 * time.Millisecond}, nil, nil)
	_, err := r.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, errors.Is(err, posting.ErrFetch))
}

func TestRetrieverLimiterErrorIsFetchFailure(t *testing.T) {
	t.Parallel()

	r := New(Config{}, failingLimiter{}, nil)
	_, err := r.Fetch(context.Background(), "http://example.invalid")
	require.Error(t, err)
	require.True(t, errors.Is(err, posting.ErrFetch))
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	r := New(Config{UserAgents: []string{"only-agent"}}, nil, nil)
	require.Equal(t, "only-agent", r.UserAgent())
	require.Equal(t, defaultTimeout, r.cfg.Timeout)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	r := New(Config{}, nil, nil)
	var result fetchResult
	var fetchErr error

	hooks := &stubHooks{}
	r.configureCollectorHooks(hooks, &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	require.Equal(t, "keep-alive", collyReq.Headers.Get("Connection"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	require.Equal(t, http.StatusCreated, result.status)
	require.Equal(t, "body", string(result.body))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

type failingLimiter struct{}

func (failingLimiter) Wait(context.Context, string) error {
	return errors.New("limiter closed")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
