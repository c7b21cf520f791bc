package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
	"github.com/JakeFAU/jobalert-crawler/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func job(board, name, advt, date string) posting.Posting {
	return posting.Posting{PostBoard: board, PostName: name, AdvtNo: advt, PostDate: date}
}

func TestDetectNewColdStart(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)}
	tr := New(memory.NewTrackingStore(), clock, nil)

	fresh := []posting.Posting{job("RRB", "ALP", "01", "12/03/2024"), job("SSC", "GD", "02", "11/03/2024")}
	got, err := tr.DetectNew(ctx, "railway", fresh)
	require.NoError(t, err)
	require.Empty(t, got)

	rec, ok, err := tr.GetLatest(ctx, "railway")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "RRB-ALP-01", rec.LatestIdentity)
	require.Equal(t, "ALP", rec.LatestTitle)
	require.Equal(t, "RRB", rec.LatestBoard)
	require.Equal(t, "12/03/2024", rec.LatestDate)
	require.Equal(t, clock.now, rec.LastCheckedAt)
}

func TestDetectNewIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)}
	tr := New(memory.NewTrackingStore(), clock, nil)
	fresh := []posting.Posting{job("RRB", "ALP", "01", "12/03/2024")}

	_, err := tr.DetectNew(ctx, "railway", fresh)
	require.NoError(t, err)

	clock.now = clock.now.Add(time.Hour)
	got, err := tr.DetectNew(ctx, "railway", fresh)
	require.NoError(t, err)
	require.Empty(t, got)

	rec, _, err := tr.GetLatest(ctx, "railway")
	require.NoError(t, err)
	require.Equal(t, clock.now, rec.LastCheckedAt)
}

func TestDetectNewDateThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := New(memory.NewTrackingStore(), &fakeClock{}, nil)
	require.NoError(t, tr.Update(ctx, "bank", job("SBI", "PO", "1", "10/03/2024")))

	fresh := []posting.Posting{
		job("IBPS", "Clerk", "2", "12/03/2024"),
		job("RBI", "Grade B", "3", "10/03/2024"),
		job("SBI", "PO", "1", "10/03/2024"),
		job("NABARD", "DA", "4", "09/03/2024"),
		job("Undated", "X", "5", "soon"),
	}
	got, err := tr.DetectNew(ctx, "bank", fresh)
	require.NoError(t, err)
	// same-day postings, including the one already tracked, are reported
	require.Equal(t, fresh[:3], got)

	rec, _, err := tr.GetLatest(ctx, "bank")
	require.NoError(t, err)
	require.Equal(t, "IBPS-Clerk-2", rec.LatestIdentity)
}

func TestDetectNewUnparsableStoredDate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := New(memory.NewTrackingStore(), &fakeClock{}, nil)
	require.NoError(t, tr.Update(ctx, "bank", job("SBI", "PO", "1", "")))

	fresh := []posting.Posting{job("IBPS", "Clerk", "2", "12/03/2024"), job("RBI", "B", "3", "11/03/2024")}
	got, err := tr.DetectNew(ctx, "bank", fresh)
	require.NoError(t, err)
	require.Equal(t, fresh[:1], got)
}

func TestDetectNewEmptyLeavesRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewTrackingStore()
	tr := New(store, &fakeClock{}, nil)

	got, err := tr.DetectNew(ctx, "bank", nil)
	require.NoError(t, err)
	require.Empty(t, got)
	_, ok, err := tr.GetLatest(ctx, "bank")
	require.NoError(t, err)
	require.False(t, ok)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (posting.TrackingRecord, bool, error) {
	return posting.TrackingRecord{}, false, errors.New("down")
}

func (failingStore) Upsert(context.Context, posting.TrackingRecord) error {
	return errors.New("down")
}

func TestDetectNewStoreFailure(t *testing.T) {
	t.Parallel()

	tr := New(failingStore{}, &fakeClock{}, nil)
	_, err := tr.DetectNew(context.Background(), "bank", []posting.Posting{job("a", "b", "c", "01/01/2024")})
	require.ErrorContains(t, err, "get tracking record")
	require.Error(t, tr.Update(context.Background(), "bank", job("a", "b", "c", "01/01/2024")))
}
