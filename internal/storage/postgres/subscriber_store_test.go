package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestDirectoryFindByInterest(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	dir, err := NewDirectory(mock, "subscribers")
	require.NoError(t, err)

	yes, no := true, false
	mock.ExpectQuery("SELECT id, email, interests, push_tokens").WithArgs("bank").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "interests", "push_tokens", "email_enabled", "push_enabled"}).
			AddRow("u1", "a@example.com", []string{"bank"}, []string{"tok"}, &no, &yes))

	subs, err := dir.FindByInterest(context.Background(), "bank")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "a@example.com", subs[0].Email)
	require.Equal(t, []string{"tok"}, subs[0].PushTokens)
	require.False(t, subs[0].Settings.EmailEnabled())
	require.True(t, subs[0].Settings.PushEnabled())
	require.NoError(t, mock.ExpectationsWereMet())
}
