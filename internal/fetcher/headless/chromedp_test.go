package headless

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

func TestNewChromedpValidation(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1}, nil)
	require.Error(t, err)

	fetcher, err := NewChromedp(Config{MaxParallel: 2}, nil)
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)
	require.Equal(t, 2, cap(fetcher.slots))
	require.Equal(t, defaultNavigationTimeout, fetcher.cfg.NavigationTimeout)
}

func TestFetchSlotWaitHonorsContext(t *testing.T) {
	t.Parallel()

	fetcher, err := NewChromedp(Config{MaxParallel: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(fetcher.Close)
	fetcher.slots <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = fetcher.Fetch(ctx, "https://example.com")
	require.Error(t, err)
	require.True(t, errors.Is(err, posting.ErrFetch))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()

	fetcher := &Fetcher{slots: make(chan struct{}, 1)}
	fetcher.release()
	require.NoError(t, fetcher.acquire(context.Background()))
	require.Len(t, fetcher.slots, 1)
	fetcher.release()
	require.Empty(t, fetcher.slots)
}

func TestResponseMetaKeepsFirstDocumentStatus(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	require.Equal(t, 200, meta.statusOr(200))

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500},
	})
	require.Equal(t, 200, meta.statusOr(200))

	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404},
	})
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200},
	})
	require.Equal(t, 404, meta.statusOr(200))
	meta.captureEvent("not an event")
}
