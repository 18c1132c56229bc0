//go:build !integration

package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-storefront-bot/internal/domain"
	"telegram-storefront-bot/internal/domain/model"
)

func setupMockRepo(t *testing.T) (*RecipientRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRecipientRepo(db), mock
}

func TestRecipientRepoSQL(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Save binds fixed-width timestamps", func(t *testing.T) {
		repo, mock := setupMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (user_id, username, first_name, last_name, first_seen, last_seen)`)).
			WithArgs(int64(7), "u", "f", "l", "2024-01-02T03:04:05.000000000Z", "2024-01-02T03:04:05.000000000Z").
			WillReturnResult(sqlmock.NewResult(7, 1))

		err := repo.Save(ctx, nil, &model.Recipient{TelegramID: 7, Username: "u", FirstName: "f", LastName: "l", FirstSeen: ts, LastSeen: ts})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Save wraps driver errors", func(t *testing.T) {
		repo, mock := setupMockRepo(t)
		boom := errors.New("disk I/O error")
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).WillReturnError(boom)

		err := repo.Save(ctx, nil, &model.Recipient{TelegramID: 7})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "save recipient 7")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FindByTelegramID maps no rows to ErrNotFound", func(t *testing.T) {
		repo, mock := setupMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE user_id = ?`)).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "first_name", "last_name", "first_seen", "last_seen"}))

		_, err := repo.FindByTelegramID(ctx, nil, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ListByFirstSeen tolerates NULL timestamps", func(t *testing.T) {
		repo, mock := setupMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY first_seen ASC, user_id ASC`)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "first_name", "last_name", "first_seen", "last_seen"}).
				AddRow(int64(1), "", "", "", "2024-01-02T03:04:05.000000000Z", nil).
				AddRow(int64(2), "b", "", "", nil, nil))

		list, err := repo.ListByFirstSeen(ctx, nil)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.True(t, list[0].LastSeen.Equal(ts))
		assert.True(t, list[1].FirstSeen.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Count wraps query errors", func(t *testing.T) {
		repo, mock := setupMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).WillReturnError(errors.New("locked"))

		_, err := repo.Count(ctx, nil)
		assert.ErrorContains(t, err, "count recipients")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
