package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

func TestHeuristic_ShouldPromote_EmptyBody(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote([]byte("  \n")))
}

func TestHeuristic_ShouldPromote_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(100)
	require.True(t, h.ShouldPromote([]byte(`<div id="__next"></div>`)))
	require.False(t, h.ShouldPromote([]byte(`<table class="lattbl"><tr><td>x</td></tr></table>`)))
}

func TestHeuristic_ShouldPromote_ScriptDensity(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(1000)
	require.True(t, h.ShouldPromote([]byte(`<html><script>var a=1;</script><p>t</p></html>`)))
	require.True(t, h.ShouldPromote([]byte(`<p>x</p><SCRIPT src="a.js">`)))
}

func TestHeuristic_ShouldPromote_MissingContentMarker(t *testing.T) {
	t.Parallel()

	h := NewHeuristic(10, "lattbl", "edtbl")
	require.True(t, h.ShouldPromote([]byte(`<html><body><div>loading listings</div></body></html>`)))
	require.False(t, h.ShouldPromote([]byte(`<html><body><table class="edtbl"></table></body></html>`)))
}

type stubFetcher struct {
	body  string
	err   error
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.body), nil
}

func TestFetcherPromotes(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: `<div id="root"></div>`}
	headless := &stubFetcher{body: `<table class="lattbl"></table>`}
	f := NewFetcher(static, headless, NewHeuristic(0, "lattbl"), nil)

	body, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Contains(t, string(body), "lattbl")
	require.Equal(t, 1, headless.calls)
}

func TestFetcherSkipsRenderedPages(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: `<table class="lattbl"></table>`}
	headless := &stubFetcher{}
	f := NewFetcher(static, headless, NewHeuristic(0, "lattbl"), nil)

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Zero(t, headless.calls)
}

func TestFetcherFallsBackOnRenderFailure(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{body: `<div id="app"></div>`}
	headless := &stubFetcher{err: errors.New("chrome not found")}
	f := NewFetcher(static, headless, NewHeuristic(0), nil)

	body, err := f.Fetch(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, `<div id="app"></div>`, string(body))
}

func TestFetcherPropagatesStaticFailure(t *testing.T) {
	t.Parallel()

	static := &stubFetcher{err: posting.ErrFetch}
	headless := &stubFetcher{}
	f := NewFetcher(static, headless, NewHeuristic(0), nil)

	_, err := f.Fetch(context.Background(), "https://example.com")
	require.ErrorIs(t, err, posting.ErrFetch)
	require.Zero(t, headless.calls)
}
