package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

func batch(tag string, n int) []posting.Posting {
	out := make([]posting.Posting, n)
	for i := range out {
		out[i] = posting.Posting{PostBoard: tag, PostName: fmt.Sprintf("%s-%d", tag, i), AdvtNo: "1"}
	}
	return out
}

func TestSnapshotStoreReadWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSnapshotStore()

	page, err := store.Read(ctx, "bank", 0, 20)
	require.NoError(t, err)
	require.Equal(t, 0, page.Total)
	require.NotNil(t, page.Data)
	require.Empty(t, page.Data)

	ok, err := store.Exists(ctx, "bank")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Replace(ctx, "bank", batch("a", 5)))
	page, err = store.Read(ctx, "bank", 1, 2)
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, []string{"a-1", "a-2"}, names(page.Data))

	page, err = store.Read(ctx, "bank", 4, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"a-4"}, names(page.Data))

	page, err = store.Read(ctx, "bank", 9, 10)
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Empty(t, page.Data)

	ok, err = store.Exists(ctx, "bank")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSnapshotStoreReplaceIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSnapshotStore()
	require.NoError(t, store.Replace(ctx, "railway", batch("seed", 50)))

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_ = store.Replace(ctx, "railway", batch(fmt.Sprintf("w%d-%d", w, i), 50))
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				page, err := store.Read(ctx, "railway", 0, 100)
				if err != nil {
					t.Error(err)
					return
				}
				boards := map[string]struct{}{}
				for _, p := range page.Data {
					boards[p.PostBoard] = struct{}{}
				}
				if len(boards) != 1 || page.Total != 50 {
					t.Errorf("torn snapshot: %d boards, total %d", len(boards), page.Total)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSnapshotStoreCopiesInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSnapshotStore()
	in := batch("x", 2)
	require.NoError(t, store.Replace(ctx, "bank", in))
	in[0].PostName = "mutated"

	page, err := store.Read(ctx, "bank", 0, 10)
	require.NoError(t, err)
	require.Equal(t, "x-0", page.Data[0].PostName)
}

func TestTrackingStoreAndDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracking := NewTrackingStore()
	_, ok, err := tracking.Get(ctx, "bank")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, tracking.Upsert(ctx, posting.TrackingRecord{Category: "bank", LatestIdentity: "a-b-c"}))
	rec, ok, err := tracking.Get(ctx, "bank")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a-b-c", rec.LatestIdentity)

	dir := NewDirectory(posting.Subscriber{ID: "1", Interests: []string{"bank"}})
	dir.Add(posting.Subscriber{ID: "2", Interests: []string{"railway", "bank"}})
	dir.Add(posting.Subscriber{ID: "3", Interests: []string{"railway"}})
	subs, err := dir.FindByInterest(ctx, "bank")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "1", subs[0].ID)
	require.Equal(t, "2", subs[1].ID)
}

func names(in []posting.Posting) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = p.PostName
	}
	return out
}
