package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

func TestTrackingStoreUpsert(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTrackingStore(mock, "")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := posting.TrackingRecord{
		Category:       "bank",
		LatestIdentity: "SBI-PO-1",
		LatestTitle:    "PO",
		LatestBoard:    "SBI",
		LatestDate:     "10/03/2024",
		LastCheckedAt:  now,
	}
	mock.ExpectExec("INSERT INTO job_tracking").
		WithArgs("bank", "SBI-PO-1", "PO", "SBI", "10/03/2024", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Upsert(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackingStoreGet(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewTrackingStore(mock, "job_tracking")
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT latest_job_id").WithArgs("bank").
		WillReturnRows(pgxmock.NewRows([]string{"latest_job_id", "title", "board", "date", "last_checked"}).
			AddRow("SBI-PO-1", "PO", "SBI", "10/03/2024", now))
	mock.ExpectQuery("SELECT latest_job_id").WithArgs("railway").
		WillReturnError(pgx.ErrNoRows)

	rec, ok, err := store.Get(context.Background(), "bank")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bank", rec.Category)
	require.Equal(t, "SBI-PO-1", rec.LatestIdentity)
	require.Equal(t, now, rec.LastCheckedAt)

	_, ok, err = store.Get(context.Background(), "railway")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
